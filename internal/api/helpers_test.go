package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trainer-booking-backend/config"
	"trainer-booking-backend/internal/booking"
	"trainer-booking-backend/internal/db"
	"trainer-booking-backend/internal/metrics"
	"trainer-booking-backend/internal/model"
	"trainer-booking-backend/internal/mw"
	"trainer-booking-backend/internal/schedule"
	"trainer-booking-backend/internal/store"
)

const (
	trainerID = "11111111-1111-1111-1111-111111111111"
	clientID  = "22222222-2222-2222-2222-222222222222"
	adminID   = "44444444-4444-4444-4444-444444444444"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	store  store.Store
	clock  *schedule.FixedClock
}

func newTestServer(t *testing.T, vapid *webpush.Options) *testServer {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{
		DSN: "sqlite://file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	st := store.NewGormStore(gormDB)
	ctx := context.Background()
	for _, u := range []model.User{
		{ID: trainerID, Name: "Tess", Email: "tess@example.com", Role: model.RoleTrainer},
		{ID: clientID, Name: "Cal", Email: "cal@example.com", Role: model.RoleClient},
		{ID: adminID, Name: "Ada", Email: "ada@example.com", Role: model.RoleAdmin},
	} {
		u := u
		require.NoError(t, st.CreateUser(ctx, &u))
	}
	require.NoError(t, st.CreateTrainer(ctx, &model.Trainer{ID: trainerID, Timezone: "UTC"}))

	// Friday 2024-03-01 08:00 UTC.
	clock := schedule.NewFixedClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	rc := mw.NewResponseCache(time.Minute)
	deps := booking.Deps{
		Store: st,
		Clock: clock,
		Hooks: booking.Hooks{ScheduleChanged: rc.InvalidateTrainer},
	}
	h := NewHandler(st, Services{
		Slots:     booking.NewSlotGenerator(deps),
		Admission: booking.NewAdmissionController(deps),
		Settings:  booking.NewSettings(deps),
	}, vapid)
	router := NewRouter(h, RouterOptions{Cache: rc, Metrics: metrics.New()})
	return &testServer{router: router, store: st, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(actorHeader, actor)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// openWeekdays gives the trainer 09:00-12:00 on Monday to Friday.
func (s *testServer) openWeekdays(t *testing.T) {
	t.Helper()
	var rows []gin.H
	for d := 1; d <= 5; d++ {
		rows = append(rows, gin.H{"day_of_week": d, "morning_available": true, "morning_start": "09:00", "morning_end": "12:00"})
	}
	w := s.do(t, http.MethodPut, "/api/trainers/"+trainerID+"/availability", trainerID, rows)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func newBooking(date, start, end string) gin.H {
	return gin.H{"trainer_id": trainerID, "client_id": clientID, "date": date, "start_time": start, "end_time": end}
}
