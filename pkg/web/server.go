// Package web serves the inventory scan form.
package web

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/medphys/bulkcbct/pkg/inventory"
	"github.com/medphys/bulkcbct/pkg/phantom"
)

// fallbackModels is shown in the phantom dropdown when no analyzer
// integration has registered itself; scanning works without one.
var fallbackModels = []string{"CatPhan503", "CatPhan504", "CatPhan600", "CatPhan604", "CatPhan700"}

// Server handles the scan form and remembers the last inventory for download.
type Server struct {
	registry *phantom.Registry
	logger   *slog.Logger
	tmpl     *template.Template

	mu            sync.Mutex
	lastInventory string
}

// NewRouter builds the HTTP handler for the web UI. A nil registry uses the
// process default.
func NewRouter(registry *phantom.Registry, logger *slog.Logger) http.Handler {
	if registry == nil {
		registry = phantom.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		registry: registry,
		logger:   logger,
		tmpl:     template.Must(template.New("index").Parse(indexTemplate)),
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/", s.wrap(s.handleIndex))
	mux.Post("/", s.wrap(s.handleIndex))
	mux.Get("/download.json", s.wrap(s.handleDownload))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			s.logger.Error("request failed", "path", req.URL.Path, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// formState holds the current values submitted via the form.
type formState struct {
	Root           string
	Extensions     string
	FollowSymlinks bool
	Phantom        string
}

type message struct {
	Category string // error or success
	Text     string
}

type phantomOption struct {
	Value string
	Label string
}

type indexData struct {
	State          formState
	Messages       []message
	Inventory      *inventory.StudyInventory
	InventoryJSON  string
	PhantomOptions []phantomOption
}

func (s *Server) handleIndex(w http.ResponseWriter, req *http.Request) error {
	data := indexData{
		State: formState{
			Extensions: strings.Join(inventory.DefaultExtensions, " "),
		},
		PhantomOptions: s.phantomOptions(),
	}
	if len(data.PhantomOptions) > 0 {
		data.State.Phantom = data.PhantomOptions[0].Value
	}

	if req.Method == http.MethodPost {
		if err := req.ParseForm(); err != nil {
			return fmt.Errorf("parse form: %w", err)
		}
		data.State.Root = strings.TrimSpace(req.PostFormValue("root"))
		if ext := req.PostFormValue("extensions"); ext != "" {
			data.State.Extensions = ext
		}
		data.State.FollowSymlinks = req.PostFormValue("follow_symlinks") == "on"
		if p := req.PostFormValue("phantom"); p != "" {
			data.State.Phantom = p
		}

		s.runScan(&data)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return s.tmpl.Execute(w, data)
}

func (s *Server) runScan(data *indexData) {
	if data.State.Root == "" {
		data.Messages = append(data.Messages, message{"error", "Please provide a root directory to scan."})
		return
	}

	inv, err := inventory.Scan(data.State.Root, inventory.Options{
		Extensions:     inventory.NormalizeExtensions(splitExtensions(data.State.Extensions)),
		FollowSymlinks: data.State.FollowSymlinks,
		Logger:         s.logger,
	})
	switch {
	case errors.Is(err, inventory.ErrRootNotFound):
		data.Messages = append(data.Messages, message{"error", "The provided root directory does not exist."})
		return
	case errors.Is(err, inventory.ErrNotDirectory):
		data.Messages = append(data.Messages, message{"error", "The provided root path is not a directory."})
		return
	case err != nil:
		data.Messages = append(data.Messages, message{"error", fmt.Sprintf("An unexpected error occurred: %v", err)})
		return
	}

	invJSON, err := inv.ToJSON()
	if err != nil {
		data.Messages = append(data.Messages, message{"error", fmt.Sprintf("Could not serialize the inventory: %v", err)})
		return
	}

	s.mu.Lock()
	s.lastInventory = invJSON
	s.mu.Unlock()

	data.Inventory = inv
	data.InventoryJSON = invJSON
	data.Messages = append(data.Messages, message{
		Category: "success",
		Text:     fmt.Sprintf("Scan completed successfully with %d studies.", inv.StudyCount()),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, req *http.Request) error {
	s.mu.Lock()
	invJSON := s.lastInventory
	s.mu.Unlock()

	if invJSON == "" {
		http.Redirect(w, req, "/", http.StatusSeeOther)
		return nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename=inventory.json`)
	_, err := w.Write([]byte(invJSON))
	return err
}

var catphanSuffix = regexp.MustCompile(`^CatPhan(\d+)$`)

func (s *Server) phantomOptions() []phantomOption {
	models := s.registry.Models()
	if len(models) == 0 {
		models = fallbackModels
	}
	sort.Strings(models)

	options := make([]phantomOption, 0, len(models))
	for _, model := range models {
		label := model
		if m := catphanSuffix.FindStringSubmatch(model); m != nil {
			label = "Catphan " + m[1]
		}
		options = append(options, phantomOption{Value: model, Label: label})
	}
	return options
}

func splitExtensions(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\r' || r == '\t'
	})
}
