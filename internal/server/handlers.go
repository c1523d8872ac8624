package server

import (
	"encoding/json"
	"errors"
	"log"
)

// sendError surfaces a "CODE: message" error string as a structured payload.
func (s *Server) sendError(userID string, msg string) {
	s.connectionManager.SendMessage(userID, ServerMessage{
		Type:    "error",
		Payload: splitErrorCode(msg),
	})
}

func (s *Server) sendFailure(userID string, err error) {
	var conflict *VersionConflictError
	if errors.As(err, &conflict) {
		version := conflict.ServerVersion
		s.connectionManager.SendMessage(userID, ServerMessage{
			Type: "error",
			Payload: ErrorMessage{
				Code:          "VERSION_CONFLICT",
				Message:       "Your state is stale, resynchronize and retry",
				ServerVersion: &version,
			},
		})
		return
	}
	s.sendError(userID, err.Error())
}

func splitErrorCode(msg string) ErrorMessage {
	for i := 0; i < len(msg)-1; i++ {
		ch := msg[i]
		if ch == ':' {
			if i+1 < len(msg) && msg[i+1] == ' ' {
				return ErrorMessage{Code: msg[:i], Message: msg[i+2:]}
			}
			break
		}
		if !(ch == '_' || (ch >= 'A' && ch <= 'Z')) {
			break
		}
	}
	return ErrorMessage{Code: "INTERNAL_ERROR", Message: msg}
}

func (s *Server) handleCreateGame(user *User, payload json.RawMessage) {
	var req CreateGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(user.ID, "BAD_REQUEST: Invalid create_game payload")
		return
	}

	if req.VsAI {
		sess := s.lifecycle.StartAIGame(user.ID)
		s.connectionManager.BindGame(user.ID, sess.ID)

		s.connectionManager.SendMessage(user.ID, ServerMessage{
			Type:    "game_created",
			Payload: CreateGameResponse{GameID: sess.ID, Version: 0, Started: true},
		})

		// Creator sees the initial deal right away
		if state, err := s.processor.StateFor(sess.ID, user.ID); err == nil {
			s.connectionManager.Send(user.ID, GameEvent{Type: EventGameStateUpdated, GameState: state})
		}
		return
	}

	wg := s.registry.CreateWaiting(user.ID, req.IsPrivate)
	s.connectionManager.BindGame(user.ID, wg.ID)
	s.connectionManager.SendMessage(user.ID, ServerMessage{
		Type:    "game_created",
		Payload: CreateGameResponse{GameID: wg.ID, Version: wg.Version, Started: false},
	})
}

func (s *Server) handleJoinGame(user *User, payload json.RawMessage) {
	var req JoinGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(user.ID, "BAD_REQUEST: Invalid join_game payload")
		return
	}

	wg, err := s.registry.ClaimSeat(req.GameID, user.ID, req.ExpectedVersion)
	if err != nil {
		// A duplicate join from someone already seated is reported as such,
		// not as a full game
		if sess, getErr := s.registry.Get(req.GameID); getErr == nil && sess.seatOf(user.ID) >= 0 {
			s.sendError(user.ID, "ALREADY_JOINED: You are already in this game")
			return
		}
		s.sendError(user.ID, err.Error())
		return
	}

	sess := s.lifecycle.StartFromWaiting(wg, user.ID)
	s.connectionManager.BindGame(user.ID, sess.ID)

	s.connectionManager.SendMessage(user.ID, ServerMessage{
		Type:    "game_joined",
		Payload: JoinGameResponse{GameID: sess.ID, Version: 0, Started: true},
	})

	if err := s.persistenceManager.AppendEvent(sess.ID, EventPlayerJoined, PlayerJoinedEvent{GameID: sess.ID, UserID: user.ID}); err != nil {
		log.Printf("Event log append failed: %v", err)
	}

	// Both seats learn about the join and get their opening view
	joined := GameEvent{
		Type:         EventPlayerJoined,
		PlayerJoined: &PlayerJoinedEvent{GameID: sess.ID, UserID: user.ID},
	}
	for _, participant := range sess.Participants {
		s.connectionManager.Send(participant, joined)
	}
	s.broadcastState(sess.ID)
}

func (s *Server) handleListGames(user *User) {
	s.connectionManager.SendMessage(user.ID, ServerMessage{
		Type:    "games_list",
		Payload: ListGamesResponse{Games: s.registry.ListOpen()},
	})
}

func (s *Server) handleSubmitMove(user *User, payload json.RawMessage) {
	var req SubmitMoveRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(user.ID, "BAD_REQUEST: Invalid submit_move payload")
		return
	}

	cardID := -1
	if req.CardID != nil {
		cardID = *req.CardID
	}

	outcome, err := s.processor.Apply(req.GameID, Move{
		Actor:           user.ID,
		Type:            req.Type,
		CardID:          cardID,
		RequestID:       req.RequestID,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		s.sendFailure(user.ID, err)
		return
	}

	state, stateErr := s.processor.StateFor(req.GameID, user.ID)
	resp := SubmitMoveResponse{
		GameID:    req.GameID,
		Version:   outcome.Version,
		Duplicate: outcome.Duplicate,
	}
	if stateErr == nil {
		resp.State = state.State
	}
	s.connectionManager.SendMessage(user.ID, ServerMessage{Type: "move_result", Payload: resp})

	// A replayed duplicate already had its effects dispatched the first time
	if !outcome.Duplicate {
		s.dispatchOutcome(outcome)
	}
}

func (s *Server) handleFetchState(user *User, payload json.RawMessage) {
	var req FetchStateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(user.ID, "BAD_REQUEST: Invalid fetch_state payload")
		return
	}

	state, err := s.processor.StateFor(req.GameID, user.ID)
	if err != nil {
		s.sendError(user.ID, err.Error())
		return
	}

	s.connectionManager.BindGame(user.ID, req.GameID)
	s.connectionManager.Send(user.ID, GameEvent{Type: EventGameStateUpdated, GameState: state})
}

func (s *Server) handleSpectate(user *User, payload json.RawMessage) {
	var req SpectateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(user.ID, "BAD_REQUEST: Invalid spectate payload")
		return
	}

	state, err := s.processor.StateFor(req.GameID, user.ID)
	if err != nil {
		s.sendError(user.ID, err.Error())
		return
	}

	// Spectators stay bound to the game so broadcasts reach them
	s.connectionManager.BindGame(user.ID, req.GameID)
	s.connectionManager.Send(user.ID, GameEvent{Type: EventGameStateUpdated, GameState: state})
}

func (s *Server) handleLeaveGame(user *User, payload json.RawMessage) {
	var req LeaveGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(user.ID, "BAD_REQUEST: Invalid leave_game payload")
		return
	}

	if err := s.registry.AbandonWaiting(req.GameID, user.ID); err != nil {
		s.sendError(user.ID, err.Error())
		return
	}

	s.connectionManager.BindGame(user.ID, "")
	s.connectionManager.SendMessage(user.ID, ServerMessage{
		Type:    "game_left",
		Payload: LeaveGameResponse{GameID: req.GameID},
	})
}

// dispatchOutcome distributes an accepted move: event log, per-recipient
// broadcasts, finalization on game end, and a nudge to the AI scheduler.
// Runs outside the session lock.
func (s *Server) dispatchOutcome(outcome *MoveOutcome) {
	gameID := outcome.GameID

	moveMade := &MoveMadeEvent{
		GameID:   gameID,
		Actor:    outcome.Actor,
		MoveType: outcome.MoveType,
		Version:  outcome.Version,
	}
	if err := s.persistenceManager.AppendEvent(gameID, EventMoveMade, moveMade); err != nil {
		log.Printf("Event log append failed: %v", err)
	}

	recipients := s.recipientsFor(gameID)
	s.connectionManager.Broadcast(recipients, func(string) (GameEvent, bool) {
		return GameEvent{Type: EventMoveMade, MoveMade: moveMade}, true
	})
	s.broadcastState(gameID)

	switch {
	case outcome.GameEnded:
		s.finishGame(gameID, recipients)
	case outcome.RoundEnded:
		sess, err := s.registry.Get(gameID)
		if err != nil {
			return
		}
		sess.mu.Lock()
		result := sess.Game.LastResult
		sess.mu.Unlock()
		s.connectionManager.Broadcast(recipients, func(string) (GameEvent, bool) {
			return GameEvent{Type: EventRoundEnded, RoundEnded: &RoundEndedEvent{GameID: gameID, Result: result}}, true
		})
	default:
		s.connectionManager.Broadcast(recipients, func(string) (GameEvent, bool) {
			return GameEvent{Type: EventTurnChanged, TurnChanged: &TurnChangedEvent{
				GameID:       gameID,
				ActivePlayer: outcome.ActivePlayer,
				Version:      outcome.Version,
			}}, true
		})
	}

	if !outcome.GameEnded {
		s.scheduler.MoveApplied(gameID)
	}
}

// broadcastState pushes a fresh projection to every connected viewer of a
// game, each built for that viewer specifically.
func (s *Server) broadcastState(gameID string) {
	s.connectionManager.Broadcast(s.recipientsFor(gameID), func(userID string) (GameEvent, bool) {
		state, err := s.processor.StateFor(gameID, userID)
		if err != nil {
			return GameEvent{}, false
		}
		return GameEvent{Type: EventGameStateUpdated, GameState: state}, true
	})
}

// recipientsFor is the union of a game's participants and whoever bound
// their connection to it (spectators).
func (s *Server) recipientsFor(gameID string) []string {
	seen := make(map[string]bool)
	users := make([]string, 0, 4)

	if sess, err := s.registry.Get(gameID); err == nil {
		for _, p := range sess.Participants {
			if !seen[p] {
				seen[p] = true
				users = append(users, p)
			}
		}
	}
	for _, userID := range s.connectionManager.UsersForGame(gameID) {
		if !seen[userID] {
			seen[userID] = true
			users = append(users, userID)
		}
	}
	return users
}

func (s *Server) finishGame(gameID string, recipients []string) {
	sess, err := s.registry.Get(gameID)
	if err != nil {
		return
	}

	ended, err := s.lifecycle.Finish(sess)
	if err != nil {
		log.Printf("Finalization failed for %s, result retained for retry: %v", gameID, err)
		return
	}
	if ended == nil {
		return
	}

	s.connectionManager.Broadcast(recipients, func(string) (GameEvent, bool) {
		return GameEvent{Type: EventGameEnded, GameEnded: ended}, true
	})
}
