package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/rentchain-properties/api/middleware"
	"github.com/angelmondragon/rentchain-properties/internal/properties"
	"github.com/angelmondragon/rentchain-properties/internal/rooms"
	"github.com/angelmondragon/rentchain-properties/pkg/auth"
	"github.com/angelmondragon/rentchain-properties/pkg/db/models"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
)

const ownerAddress = "0x5290a7c2f4a1a4b3c4d5e6f708192a3b4c5d9ee7"

var testPrincipal = auth.Principal{OwnerID: "owner-1", OwnerAddress: ownerAddress, Roles: []string{"LANDLORD"}}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

// newRequest builds a request with chi URL params and, when p is non-nil, a caller.
func newRequest(method, target string, body io.Reader, p *auth.Principal, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if p != nil {
		ctx = middleware.WithPrincipal(ctx, *p)
	}
	return req.WithContext(ctx)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  json.RawMessage `json:"meta"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body=%s)", err, rec.Body.String())
	}
	return env
}

type stubPropertyService struct {
	createErr   error
	gotPrinc    auth.Principal
	gotInput    properties.PropertyInput
	gotCaller   string
	gotLimit    int
	gotOffset   int
	delistErr   error
	mine        []properties.PropertyDTO
	described   []models.Property
	propertyDTO *properties.PropertyDTO
}

func (s *stubPropertyService) Create(_ context.Context, p auth.Principal, in properties.PropertyInput) (*properties.PropertyDTO, error) {
	s.gotPrinc, s.gotInput = p, in
	if s.createErr != nil {
		return nil, s.createErr
	}
	id := int64(7)
	return &properties.PropertyDTO{ID: uuid.New(), LedgerID: &id, Title: in.Title, OwnerAddress: p.OwnerAddress}, nil
}

func (s *stubPropertyService) Update(_ context.Context, id uuid.UUID, in properties.PropertyInput, caller string) (*properties.PropertyDTO, error) {
	s.gotInput, s.gotCaller = in, caller
	return &properties.PropertyDTO{ID: id, Title: in.Title}, nil
}

func (s *stubPropertyService) Delist(_ context.Context, _ uuid.UUID, caller string) error {
	s.gotCaller = caller
	return s.delistErr
}

func (s *stubPropertyService) Get(_ context.Context, id uuid.UUID) (*properties.PropertyDTO, error) {
	if s.propertyDTO != nil {
		return s.propertyDTO, nil
	}
	return &properties.PropertyDTO{ID: id}, nil
}

func (s *stubPropertyService) ListMine(_ context.Context, caller string, limit, offset int) ([]properties.PropertyDTO, error) {
	s.gotCaller, s.gotLimit, s.gotOffset = caller, limit, offset
	return s.mine, nil
}

func (s *stubPropertyService) Describe(_ context.Context, props []models.Property) ([]properties.PropertyDTO, error) {
	s.described = props
	out := make([]properties.PropertyDTO, 0, len(props))
	for i := range props {
		out = append(out, *properties.FromModel(&props[i], 2))
	}
	return out, nil
}

type stubRoomService struct {
	rooms.Service
	upload    rooms.UploadInput
	caller    string
	uploadErr error
	reordered int
	deleted   []uuid.UUID
}

func (s *stubRoomService) CreateRoom(_ context.Context, propertyID uuid.UUID, in rooms.CreateRoomInput, caller string) (*rooms.RoomDTO, error) {
	s.caller = caller
	return &rooms.RoomDTO{ID: uuid.New(), PropertyID: propertyID, Name: in.Name}, nil
}

func (s *stubRoomService) ListRooms(context.Context, uuid.UUID) ([]rooms.RoomDTO, error) {
	return nil, nil
}

func (s *stubRoomService) DeleteRoom(_ context.Context, id uuid.UUID, caller string) error {
	s.caller = caller
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubRoomService) UploadImage(_ context.Context, roomID uuid.UUID, in rooms.UploadInput, caller string) (*rooms.ImageDTO, error) {
	s.upload, s.caller = in, caller
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return &rooms.ImageDTO{ID: uuid.New(), RoomID: roomID, StorageKey: "k.png"}, nil
}

func (s *stubRoomService) ReorderImage(_ context.Context, id uuid.UUID, order int, caller string) (*rooms.ImageDTO, error) {
	s.reordered, s.caller = order, caller
	return &rooms.ImageDTO{ID: id, OrderIndex: order}, nil
}
