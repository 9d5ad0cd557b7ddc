// Package server serves the build output during development with a fallback document and live reload.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/assetflow/internal/livereload"
)

const (
	// LiveReloadEventsPath streams reload events to the browser.
	LiveReloadEventsPath = "/__livereload"
	// LiveReloadScriptPath serves the client script injected into HTML responses.
	LiveReloadScriptPath = "/__livereload.js"
)

const (
	defaultHostConstant           = "localhost"
	defaultPortConstant           = 8080
	defaultFallbackConstant       = "index.html"
	directoryIndexConstant        = "index.html"
	reloadEventNameConstant       = "reload"
	connectedEventNameConstant    = "connected"
	htmlContentTypeConstant       = "text/html; charset=utf-8"
	javascriptContentTypeConstant = "application/javascript; charset=utf-8"
	bodyCloseTagConstant          = "</body>"
	readHeaderTimeoutConstant     = 10 * time.Second
	shutdownTimeoutConstant       = 5 * time.Second
	liveReloadScriptTagConstant   = `<script src="` + LiveReloadScriptPath + `"></script>`
)

const liveReloadClientScriptConstant = `(function () {
  var source = new EventSource("` + LiveReloadEventsPath + `");
  source.addEventListener("` + reloadEventNameConstant + `", function () {
    window.location.reload();
  });
})();
`

var htmlExtensions = map[string]struct{}{".html": {}, ".htm": {}}

// ErrRootNotConfigured reports a server without a directory to serve.
var ErrRootNotConfigured = errors.New("server root is not configured")

// Settings configures the development server.
type Settings struct {
	Host string
	Port int
	// Root is the directory whose files are served.
	Root string
	// Fallback is served, relative to Root, for requests that match no file. Empty disables the fallback.
	Fallback string
	// LiveReload injects the reload client into HTML responses and exposes the event stream.
	LiveReload bool
}

// DefaultSettings serves build/ on localhost:8080 with index.html as fallback and live reload enabled.
func DefaultSettings(root string) Settings {
	return Settings{
		Host:       defaultHostConstant,
		Port:       defaultPortConstant,
		Root:       root,
		Fallback:   defaultFallbackConstant,
		LiveReload: true,
	}
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the logger used for lifecycle and request events.
func WithLogger(logger *zap.Logger) Option {
	return func(server *Server) {
		if logger != nil {
			server.logger = logger
		}
	}
}

// WithReadyNotifier registers a callback invoked with the server URL once the listener is bound.
func WithReadyNotifier(notifier func(url string)) Option {
	return func(server *Server) {
		server.readyNotifier = notifier
	}
}

// Server is a gin-based static file server.
type Server struct {
	settings      Settings
	hub           *livereload.Hub
	logger        *zap.Logger
	readyNotifier func(url string)
	engine        *gin.Engine

	addressMutex sync.Mutex
	boundAddress string
}

// New constructs a Server. The hub may be nil when live reload is disabled.
func New(settings Settings, hub *livereload.Hub, options ...Option) (*Server, error) {
	if len(strings.TrimSpace(settings.Root)) == 0 {
		return nil, ErrRootNotConfigured
	}
	if len(strings.TrimSpace(settings.Host)) == 0 {
		settings.Host = defaultHostConstant
	}
	if settings.LiveReload && hub == nil {
		hub = livereload.NewHub(nil)
	}

	server := &Server{settings: settings, hub: hub, logger: zap.NewNop()}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(requestLogger(server.logger), gin.Recovery())
	if settings.LiveReload {
		engine.GET(LiveReloadEventsPath, server.streamReloadEvents)
		engine.GET(LiveReloadScriptPath, serveLiveReloadClient)
	}
	engine.NoRoute(server.serveStatic)
	server.engine = engine
	return server, nil
}

// Handler exposes the HTTP handler.
func (server *Server) Handler() http.Handler {
	return server.engine
}

// Address returns the configured host:port, or the bound address once Start is listening.
func (server *Server) Address() string {
	server.addressMutex.Lock()
	defer server.addressMutex.Unlock()
	if len(server.boundAddress) > 0 {
		return server.boundAddress
	}
	return net.JoinHostPort(server.settings.Host, strconv.Itoa(server.settings.Port))
}

// URL returns the http URL of Address.
func (server *Server) URL() string {
	return "http://" + server.Address() + "/"
}

// Start listens and serves until ctx is cancelled, then shuts down gracefully.
// Open live-reload streams end with ctx.
func (server *Server) Start(executionContext context.Context) error {
	listener, listenError := net.Listen("tcp", server.Address())
	if listenError != nil {
		return fmt.Errorf("server.listen %s: %w", server.Address(), listenError)
	}
	server.addressMutex.Lock()
	server.boundAddress = listener.Addr().String()
	server.addressMutex.Unlock()

	httpServer := &http.Server{
		Handler:           server.engine,
		ReadHeaderTimeout: readHeaderTimeoutConstant,
		BaseContext: func(net.Listener) context.Context {
			return executionContext
		},
	}

	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- httpServer.Serve(listener)
	}()

	serverURL := server.URL()
	server.logger.Info("server_listening", zap.String("url", serverURL), zap.String("root", server.settings.Root))
	if server.readyNotifier != nil {
		server.readyNotifier(serverURL)
	}

	select {
	case serveError := <-serveErrors:
		if errors.Is(serveError, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server.serve: %w", serveError)
	case <-executionContext.Done():
	}

	server.logger.Info("server_stopping", zap.String("url", serverURL))
	shutdownContext, cancelShutdown := context.WithTimeout(context.WithoutCancel(executionContext), shutdownTimeoutConstant)
	defer cancelShutdown()
	shutdownError := httpServer.Shutdown(shutdownContext)
	<-serveErrors
	if shutdownError != nil {
		return fmt.Errorf("server.shutdown: %w", shutdownError)
	}
	server.logger.Info("server_stopped", zap.String("url", serverURL))
	return nil
}

func (server *Server) serveStatic(requestContext *gin.Context) {
	if requestContext.Request.Method != http.MethodGet && requestContext.Request.Method != http.MethodHead {
		requestContext.Status(http.StatusMethodNotAllowed)
		return
	}

	requestPath := path.Clean("/" + requestContext.Request.URL.Path)
	filePath, found := server.resolve(requestPath)
	if !found {
		if len(strings.TrimSpace(server.settings.Fallback)) == 0 {
			requestContext.Status(http.StatusNotFound)
			return
		}
		filePath, found = server.resolve(path.Clean("/" + filepath.ToSlash(server.settings.Fallback)))
		if !found {
			requestContext.Status(http.StatusNotFound)
			return
		}
	}

	if _, isHTML := htmlExtensions[strings.ToLower(filepath.Ext(filePath))]; isHTML {
		server.serveDocument(requestContext, filePath)
		return
	}
	requestContext.File(filePath)
}

func (server *Server) resolve(requestPath string) (string, bool) {
	filePath := filepath.Join(server.settings.Root, filepath.FromSlash(requestPath))
	fileInfo, statError := os.Stat(filePath)
	if statError != nil {
		return "", false
	}
	if !fileInfo.IsDir() {
		return filePath, true
	}
	indexPath := filepath.Join(filePath, directoryIndexConstant)
	if indexInfo, indexError := os.Stat(indexPath); indexError == nil && !indexInfo.IsDir() {
		return indexPath, true
	}
	return "", false
}

func (server *Server) serveDocument(requestContext *gin.Context, documentPath string) {
	content, readError := os.ReadFile(documentPath)
	if readError != nil {
		server.logger.Warn("server_read_failed", zap.String("path", documentPath), zap.Error(readError))
		requestContext.Status(http.StatusInternalServerError)
		return
	}
	if server.settings.LiveReload {
		content = InjectLiveReload(content)
	}
	requestContext.Data(http.StatusOK, htmlContentTypeConstant, content)
}

// InjectLiveReload inserts the live-reload script tag before the last closing body tag, or appends it.
func InjectLiveReload(document []byte) []byte {
	insertionIndex := bytes.LastIndex(bytes.ToLower(document), []byte(bodyCloseTagConstant))
	if insertionIndex < 0 {
		return append(append([]byte(nil), document...), []byte(liveReloadScriptTagConstant)...)
	}
	injected := make([]byte, 0, len(document)+len(liveReloadScriptTagConstant))
	injected = append(injected, document[:insertionIndex]...)
	injected = append(injected, liveReloadScriptTagConstant...)
	injected = append(injected, document[insertionIndex:]...)
	return injected
}

func serveLiveReloadClient(requestContext *gin.Context) {
	requestContext.Data(http.StatusOK, javascriptContentTypeConstant, []byte(liveReloadClientScriptConstant))
}

func (server *Server) streamReloadEvents(requestContext *gin.Context) {
	events, unsubscribe := server.hub.Subscribe()
	defer unsubscribe()

	requestContext.Header("Cache-Control", "no-cache")
	requestContext.Header("Connection", "keep-alive")
	requestContext.SSEvent(connectedEventNameConstant, "ok")
	requestContext.Writer.Flush()

	requestContext.Stream(func(_ io.Writer) bool {
		select {
		case <-requestContext.Request.Context().Done():
			return false
		case event, open := <-events:
			if !open {
				return false
			}
			requestContext.SSEvent(reloadEventNameConstant, strings.Join(event.Paths, ","))
			return true
		}
	})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(requestContext *gin.Context) {
		startTime := time.Now()
		requestContext.Next()
		logger.Debug(
			"http_request",
			zap.String("method", requestContext.Request.Method),
			zap.String("path", requestContext.Request.URL.Path),
			zap.Int("status", requestContext.Writer.Status()),
			zap.Duration("duration", time.Since(startTime)),
		)
	}
}
