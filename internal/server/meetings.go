package server

import (
	"encoding/json"
	"net/http"

	"github.com/coursekit/meetingd/internal/meeting"
)

// handleMeetingCreate creates a meeting and its Google Meet event.
func (s *Server) handleMeetingCreate(w http.ResponseWriter, r *http.Request) {
	var input meeting.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	m, err := s.meetings.Create(r.Context(), input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// handleMeetingList lists meetings, optionally filtered by ?courseId=.
func (s *Server) handleMeetingList(w http.ResponseWriter, r *http.Request) {
	meetings, err := s.meetings.List(r.Context(), r.URL.Query().Get("courseId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if meetings == nil {
		meetings = []*meeting.Meeting{}
	}
	writeJSON(w, http.StatusOK, meetings)
}

func (s *Server) handleMeetingGet(w http.ResponseWriter, r *http.Request) {
	m, err := s.meetings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleMeetingUpdate(w http.ResponseWriter, r *http.Request) {
	var input meeting.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	m, err := s.meetings.Update(r.Context(), r.PathValue("id"), input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleMeetingDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.meetings.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
