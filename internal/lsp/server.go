package lsp

import (
	"context"
	"log/slog"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sucicfilip/ruby-lsp-rails/internal/core/errors"
	"github.com/sucicfilip/ruby-lsp-rails/internal/definition"
	"github.com/sucicfilip/ruby-lsp-rails/internal/ruby"
	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/observability"
	"github.com/sucicfilip/ruby-lsp-rails/internal/shared/util"
)

const serverName = "ruby-lsp-rails"

// Server is the language server surface. It owns the open-document
// store and delegates definition requests to the resolver. The
// onWorkspaceRoot callback fires once during initialize with the
// client's workspace root ("" when the client sent none); the embedder
// uses it to kick off indexing and watching.
type Server struct {
	resolver        *definition.Resolver
	docs            *DocumentStore
	handler         protocol.Handler
	version         string
	onWorkspaceRoot func(root string)
}

func NewServer(resolver *definition.Resolver, version string, onWorkspaceRoot func(root string)) *Server {
	s := &Server{
		resolver:        resolver,
		docs:            NewDocumentStore(),
		version:         version,
		onWorkspaceRoot: onWorkspaceRoot,
	}
	s.handler = protocol.Handler{
		Initialize:             s.initialize,
		Initialized:            s.initialized,
		Shutdown:               s.shutdown,
		SetTrace:               s.setTrace,
		TextDocumentDidOpen:    s.didOpen,
		TextDocumentDidChange:  s.didChange,
		TextDocumentDidClose:   s.didClose,
		TextDocumentDefinition: s.textDocumentDefinition,
	}
	return s
}

// RunStdio serves LSP over stdin/stdout until the client disconnects.
func (s *Server) RunStdio() error {
	server := glspserver.NewServer(&s.handler, serverName, false)
	return server.RunStdio()
}

func (s *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	if s.onWorkspaceRoot != nil {
		s.onWorkspaceRoot(workspaceRoot(params))
	}

	capabilities := s.handler.CreateServerCapabilities()
	capabilities.DefinitionProvider = true
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	slog.Info("client initialized")
	return nil
}

func (s *Server) shutdown(_ *glsp.Context) error {
	s.docs.CloseAll()
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) didOpen(_ *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	if err := s.docs.Open(params.TextDocument.URI, params.TextDocument.Text); err != nil {
		slog.Warn("failed to parse opened document", "uri", params.TextDocument.URI, "error", err)
	}
	return nil
}

func (s *Server) didChange(_ *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	for _, change := range params.ContentChanges {
		whole, ok := change.(protocol.TextDocumentContentChangeEventWhole)
		if !ok {
			// The server advertises full sync only.
			return errors.New(errors.CodeNotSupported, "incremental document sync is not supported")
		}
		if err := s.docs.Update(params.TextDocument.URI, whole.Text); err != nil {
			slog.Warn("failed to reparse document", "uri", params.TextDocument.URI, "error", err)
		}
	}
	return nil
}

func (s *Server) didClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.docs.Close(params.TextDocument.URI)
	return nil
}

func (s *Server) textDocumentDefinition(_ *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.docs.Get(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	target := focusedNode(doc, uint(params.Position.Line), uint(params.Position.Character))
	if target == nil {
		return nil, nil
	}

	ctx, span := observability.Tracer.Start(context.Background(), "lsp.definition")
	defer span.End()

	sink := &definition.SliceSink{}
	nctx := ruby.NewNodeContext(doc, target)
	s.resolver.OnNode(ctx, nctx, sink)

	if len(sink.Locations) == 0 {
		return nil, nil
	}
	locations := make([]protocol.Location, 0, len(sink.Locations))
	for _, loc := range sink.Locations {
		locations = append(locations, protocol.Location{
			URI: loc.URI,
			Range: protocol.Range{
				Start: protocol.Position{Line: loc.Range.StartLine, Character: loc.Range.StartColumn},
				End:   protocol.Position{Line: loc.Range.EndLine, Character: loc.Range.EndColumn},
			},
		})
	}
	return locations, nil
}

// focusedNode maps a cursor position to the node the resolver
// understands: the innermost symbol literal, string literal or call
// expression covering the position. A bare identifier in expression
// position is kept as-is rather than climbed past; an argument-less
// route helper reference has no call node of its own.
func focusedNode(doc *ruby.Document, line, column uint) *sitter.Node {
	node := doc.NodeAt(line, column)
	if ruby.IsIdentifier(node) && ruby.IsBareReference(node) {
		return node
	}
	for ; node != nil; node = node.Parent() {
		if ruby.IsSymbolLiteral(node) || ruby.IsStringLiteral(node) || ruby.IsCall(node) {
			return node
		}
	}
	return nil
}

// workspaceRoot extracts the workspace root from initialize params,
// preferring the deprecated rootPath over rootUri because clients that
// send both send them consistently and rootPath needs no decoding.
func workspaceRoot(params *protocol.InitializeParams) string {
	if params.RootPath != nil && *params.RootPath != "" {
		return *params.RootPath
	}
	if params.RootURI != nil && *params.RootURI != "" {
		return util.URIToPath(*params.RootURI)
	}
	return ""
}

func boolPtr(v bool) *bool { return &v }
