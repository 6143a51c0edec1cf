package runtime

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/relaykit/relay/internal/runtime/component"
)

// DispatcherInfo is the debug view of one cached dispatcher.
type DispatcherInfo struct {
	Component component.Identity `json:"component"`
	Handlers  []string           `json:"handlers"`
	Stats     *DispatchStats     `json:"stats"`
}

// BufferInfo is the debug view of one component's event buffer.
type BufferInfo struct {
	Component component.Identity           `json:"component"`
	Streams   map[string]BufferStreamState `json:"streams"`
}

// StartDebugServer exposes dispatcher, route, and buffer state over HTTP when
// debugging is enabled.
func (s *Service) StartDebugServer() {
	if !s.Conf.DebugEnabled {
		return
	}

	port := s.Conf.DebugPort
	if port == 0 {
		port = 8081
	}

	s.RegisterHTTPHandler(port, "/api/dispatchers", s.debugHandler(func() any { return s.dispatcherInfos() }))
	s.RegisterHTTPHandler(port, "/api/routes", s.debugHandler(func() any { return s.Routes() }))
	s.RegisterHTTPHandler(port, "/api/buffers", s.debugHandler(func() any { return s.bufferInfos() }))
}

func (s *Service) dispatcherInfos() []DispatcherInfo {
	built := s.cache.Built()
	infos := make([]DispatcherInfo, 0, len(built))
	for identity, dispatcher := range built {
		infos = append(infos, DispatcherInfo{
			Component: identity,
			Handlers:  s.registries.For(identity).Names(),
			Stats:     dispatcher.Stats(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return pipelineRank(infos[i].Component) < pipelineRank(infos[j].Component)
	})
	return infos
}

func (s *Service) bufferInfos() []BufferInfo {
	infos := make([]BufferInfo, 0, 2)
	for _, identity := range component.All() {
		buffer, ok := s.cache.Buffer(identity)
		if !ok {
			continue
		}
		infos = append(infos, BufferInfo{
			Component: identity,
			Streams:   buffer.PendingSnapshot(),
		})
	}
	return infos
}

func (s *Service) debugHandler(view func() any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// Set CORS headers based on configuration
		if s.Conf != nil && len(s.Conf.DebugCORSAllowedOrigins) > 0 {
			origin := r.Header.Get("Origin")
			allowedOrigin := s.getAllowedCORSOrigin(origin)
			if allowedOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if err := json.NewEncoder(w).Encode(view()); err != nil {
			s.Logger.Error("Failed to encode debug view", err, nil)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}

// getAllowedCORSOrigin checks if the request origin is allowed and returns the appropriate
// Access-Control-Allow-Origin value.
func (s *Service) getAllowedCORSOrigin(requestOrigin string) string {
	if s.Conf == nil {
		return ""
	}
	for _, allowed := range s.Conf.DebugCORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
