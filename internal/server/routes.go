package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.HelloWorldHandler)

	mux.HandleFunc("/health", s.healthHandler)

	mux.HandleFunc("/websocket", s.websocketHandler)

	// Wrap the mux with CORS middleware
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"message": "Hello World"}
	jsonResp, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(jsonResp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(s.db.Health())
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// bearerToken pulls the credential from the Authorization header or, for
// browser EventSource/WebSocket clients that cannot set headers, the token
// query parameter.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "Missing bearer token", http.StatusUnauthorized)
		return
	}
	user, err := s.auth(token)
	if err != nil {
		http.Error(w, "Invalid bearer token", http.StatusUnauthorized)
		return
	}

	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	conn := s.connectionManager.Register(user.ID, "", sock)
	s.health.UpdateActivity(user.ID)
	log.Printf("User %s connected", user.ID)

	defer func() {
		s.connectionManager.Unregister(user.ID, conn)
		s.rateLimiter.RemoveConnection(user.ID)
		s.health.RemoveConnection(user.ID)
		log.Printf("User %s disconnected", user.ID)
	}()

	// Initial acknowledgement before any game traffic
	s.connectionManager.Send(user.ID, GameEvent{
		Type:      EventConnected,
		Connected: &ConnectedEvent{UserID: user.ID},
	})

	for {
		msgType, data, err := sock.Read(ctx)
		if err != nil {
			log.Printf("Connection for %s read error: %v", user.ID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", user.ID)
			continue
		}

		s.health.UpdateActivity(user.ID)

		if !s.rateLimiter.Allow(user.ID) {
			s.sendError(user.ID, "RATE_LIMITED: Too many requests, slow down")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", user.ID, err)
			s.sendError(user.ID, "BAD_REQUEST: Invalid JSON")
			continue
		}

		if err := ValidateMessageType(msg.Type); err != nil {
			s.sendError(user.ID, err.Error())
			continue
		}

		// Route the message
		switch msg.Type {
		case "ping":
			s.connectionManager.SendMessage(user.ID, ServerMessage{Type: "pong", Payload: struct{}{}})

		case "create_game":
			s.handleCreateGame(user, msg.Payload)

		case "join_game":
			s.handleJoinGame(user, msg.Payload)

		case "list_games":
			s.handleListGames(user)

		case "submit_move":
			s.handleSubmitMove(user, msg.Payload)

		case "fetch_state":
			s.handleFetchState(user, msg.Payload)

		case "spectate":
			s.handleSpectate(user, msg.Payload)

		case "leave_game":
			s.handleLeaveGame(user, msg.Payload)
		}
	}
}
