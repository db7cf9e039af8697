package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
)

var entityNames = []string{"Farm", "Field", "Crop", "Sensor", "Schedule"}

//requiredFields lists, per entity, the keys the backend refuses to store without
var requiredFields = map[string][]string{
	"Farm":     {"name", "location"},
	"Field":    {"name", "farmId"},
	"Crop":     {"name"},
	"Sensor":   {"sensorType", "serialNumber", "fieldId"},
	"Schedule": {"fieldId", "scheduleType", "title", "scheduledAt", "priority"},
}

//labelFields is the key shown by the dropdown endpoint
var labelFields = map[string]string{
	"Sensor":   "serialNumber",
	"Schedule": "title",
}

type record map[string]interface{}

func (r record) id() int64 {
	id, _ := r["id"].(float64)
	return int64(id)
}

type table struct {
	entity string
	nextID int64
	rows   map[int64]record
}

func newTable(entity string) *table {
	return &table{entity: entity, nextID: 1, rows: map[int64]record{}}
}

func (t *table) ownerField() string {
	if t.entity == "Schedule" {
		return "createdBy"
	}
	return "userId"
}

//ownedBy reports whether who may see and change row. Administrators see every row.
func (t *table) ownedBy(row record, who caller) bool {
	if who.isAdmin() {
		return true
	}
	owner, _ := row[t.ownerField()].(float64)
	return int64(owner) == who.id
}

//visibleTo returns the rows of who in identifier order
func (t *table) visibleTo(who caller) []record {
	rows := []record{}
	for _, row := range t.sorted() {
		if t.ownedBy(row, who) {
			rows = append(rows, row)
		}
	}
	return rows
}

func (t *table) sorted() []record {
	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]record, 0, len(ids))
	for _, id := range ids {
		result = append(result, t.rows[id])
	}
	return result
}

//canonicalize trims every string value, the way the real backend normalizes input
func canonicalize(r record) record {
	for key, value := range r {
		if str, ok := value.(string); ok {
			r[key] = strings.TrimSpace(str)
		}
	}
	return r
}

func missingFields(entity string, r record) map[string][]string {
	errs := map[string][]string{}

	for _, field := range requiredFields[entity] {
		value, present := r[field]
		empty := !present || value == nil
		switch v := value.(type) {
		case string:
			empty = empty || v == ""
		case float64:
			empty = empty || v == 0
		}

		if empty {
			name := strings.ToUpper(field[:1]) + field[1:]
			errs[name] = []string{fmt.Sprintf("The %s field is required.", name)}
		}
	}

	return errs
}

func decodeRecord(r *http.Request) (record, error) {
	body := record{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (s *Server) listAll(t *table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who := callerFrom(r.Context())

		s.mu.Lock()
		rows := t.visibleTo(who)
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, rows)
	}
}

//filter answers with an envelope, unlike listAll, as the real backend does for paged queries
func (s *Server) filter(t *table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		who := callerFrom(r.Context())

		s.mu.Lock()
		matches := []record{}
		for _, row := range t.visibleTo(who) {
			if matchesQuery(row, query) {
				matches = append(matches, row)
			}
		}
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"items": matches,
			"total": len(matches),
		})
	}
}

func matchesQuery(row record, query map[string][]string) bool {
	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		value, ok := row[key]
		if !ok || !strings.EqualFold(fmt.Sprint(value), values[0]) {
			return false
		}
	}
	return true
}

func (s *Server) dropdown(t *table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		label := labelFields[t.entity]
		if label == "" {
			label = "name"
		}

		who := callerFrom(r.Context())

		s.mu.Lock()
		options := []map[string]interface{}{}
		for _, row := range t.visibleTo(who) {
			options = append(options, map[string]interface{}{"id": row["id"], "name": row[label]})
		}
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, options)
	}
}

func (s *Server) getRecord(t *table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Invalid id")
			return
		}

		who := callerFrom(r.Context())

		s.mu.Lock()
		row, found := t.rows[id]
		s.mu.Unlock()

		if !found || !t.ownedBy(row, who) {
			writeMessage(w, http.StatusNotFound, t.entity+" not found")
			return
		}

		writeJSON(w, http.StatusOK, row)
	}
}

func (s *Server) createRecord(t *table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeRecord(r)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Malformed JSON body")
			return
		}

		body = canonicalize(body)
		if errs := missingFields(t.entity, body); len(errs) > 0 {
			writeValidationProblem(w, errs)
			return
		}

		body[t.ownerField()] = callerFrom(r.Context()).id

		s.mu.Lock()
		body["id"] = t.nextID
		t.nextID++
		stored := roundTrip(body)
		t.rows[stored.id()] = stored
		s.mu.Unlock()

		s.log.Debugf("Created %s %d", t.entity, stored.id())
		writeJSON(w, http.StatusCreated, stored)
	}
}

func (s *Server) updateRecord(t *table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Invalid id")
			return
		}

		body, err := decodeRecord(r)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Malformed JSON body")
			return
		}

		body = canonicalize(body)
		if errs := missingFields(t.entity, body); len(errs) > 0 {
			writeValidationProblem(w, errs)
			return
		}

		who := callerFrom(r.Context())

		s.mu.Lock()
		defer s.mu.Unlock()

		existing, found := t.rows[id]
		if !found {
			writeMessage(w, http.StatusNotFound, t.entity+" not found")
			return
		}

		if !t.ownedBy(existing, who) {
			writeMessage(w, http.StatusForbidden, "You can only change your own records")
			return
		}

		body["id"] = id
		body[t.ownerField()] = existing[t.ownerField()]
		stored := roundTrip(body)
		t.rows[id] = stored

		writeJSON(w, http.StatusOK, stored)
	}
}

func (s *Server) deleteRecord(t *table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Invalid id")
			return
		}

		who := callerFrom(r.Context())

		s.mu.Lock()
		defer s.mu.Unlock()

		existing, found := t.rows[id]
		if !found {
			writeMessage(w, http.StatusNotFound, t.entity+" not found")
			return
		}

		if !t.ownedBy(existing, who) {
			writeMessage(w, http.StatusForbidden, "You can only delete your own records")
			return
		}

		delete(t.rows, id)
		s.log.Debugf("Deleted %s %d", t.entity, id)

		w.WriteHeader(http.StatusNoContent)
	}
}

//roundTrip normalizes numbers to float64 so stored rows compare the same way decoded ones do
func roundTrip(r record) record {
	raw, _ := json.Marshal(r)
	normalized := record{}
	json.Unmarshal(raw, &normalized)
	return normalized
}
