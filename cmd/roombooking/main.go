package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/config"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/notify"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/sqlite"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	logger := logging.New(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	roomRepo := sqlite.NewRoomRepository(pool)
	meetingRepo := sqlite.NewMeetingRepository(pool)
	userRepo := sqlite.NewUserRepository(pool)
	sessionRepo := sqlite.NewSessionRepository(pool)

	hub := notify.NewHub(logger)
	defer hub.Shutdown()

	var sinks []notify.Sink
	if cfg.RedisURL != "" {
		redisSink, rerr := notify.NewRedisSink(ctx, cfg.RedisURL, cfg.EventChannel)
		if rerr != nil {
			logger.Error("failed to connect to redis", "error", rerr)
			os.Exit(1)
		}
		defer redisSink.Close()
		// Events reach the hub through redis so every instance sees
		// the full stream, locally produced or not.
		sinks = append(sinks, redisSink)
		go func() {
			if serr := redisSink.Subscribe(ctx, func(payload []byte) {
				_ = hub.Deliver(ctx, payload)
			}); serr != nil && !errors.Is(serr, context.Canceled) {
				logger.Error("redis subscription ended", "error", serr)
			}
		}()
	} else {
		sinks = append(sinks, hub)
	}
	broker := notify.NewBroker(logger, sinks...)

	roomService := application.NewRoomServiceWithLogger(
		newRoomRepositoryAdapter(roomRepo),
		newMeetingLedgerAdapter(meetingRepo),
		broker, idGenerator, now, logger,
	)
	bookingService := application.NewBookingServiceWithLogger(
		newRoomCatalogAdapter(roomRepo),
		newMeetingStoreAdapter(meetingRepo),
		broker, idGenerator, now, logger,
	)
	authService := application.NewAuthService(application.AuthServiceDeps{
		Users:          newUserStoreAdapter(userRepo),
		Sessions:       newSessionStoreAdapter(sessionRepo),
		Tokens:         application.NewTokenIssuer(cfg.TokenSecret, cfg.AccessTokenTTL, now),
		IDGenerator:    idGenerator,
		TokenGenerator: tokenGenerator,
		SessionTTL:     cfg.RefreshTokenTTL,
		Logger:         logger,
	})

	go purgeExpiredSessions(ctx, sessionRepo, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:     httptransport.NewAuthHandler(authService, logger),
		Rooms:    httptransport.NewRoomHandler(roomService, logger),
		Bookings: httptransport.NewBookingHandler(bookingService, logger),
		Events:   hub,
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("room booking API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func isPublicPath(path string) bool {
	switch {
	case strings.EqualFold(path, "/login"),
		strings.EqualFold(path, "/register"),
		strings.EqualFold(path, "/sessions/refresh"):
		return true
	}
	return false
}

func purgeExpiredSessions(ctx context.Context, sessions persistence.SessionRepository, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.DeleteExpiredSessions(ctx, time.Now()); err != nil {
				logger.Error("failed to purge expired sessions", "error", err)
			}
		}
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func newRoomRepositoryAdapter(repo persistence.RoomRepository) *roomRepositoryAdapter {
	return &roomRepositoryAdapter{repo: repo}
}

func (a *roomRepositoryAdapter) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	stored, err := a.repo.GetRoom(ctx, room.ID)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) UpdateRoom(ctx context.Context, room application.Room, expectedUpdatedAt *time.Time) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room), expectedUpdatedAt); err != nil {
		return application.Room{}, err
	}
	stored, err := a.repo.GetRoom(ctx, room.ID)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) DeleteRoom(ctx context.Context, id string) error {
	return a.repo.DeleteRoom(ctx, id)
}

func (a *roomRepositoryAdapter) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	return toApplicationRooms(models), nil
}

type roomCatalogAdapter struct {
	repo persistence.RoomRepository
}

func newRoomCatalogAdapter(repo persistence.RoomRepository) *roomCatalogAdapter {
	return &roomCatalogAdapter{repo: repo}
}

func (a *roomCatalogAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomCatalogAdapter) FilterRooms(ctx context.Context, minSeats int, floor *int) ([]application.Room, error) {
	models, err := a.repo.FilterRooms(ctx, persistence.RoomFilter{MinSeats: minSeats, Floor: floor})
	if err != nil {
		return nil, err
	}
	return toApplicationRooms(models), nil
}

type meetingStoreAdapter struct {
	repo persistence.MeetingRepository
}

func newMeetingStoreAdapter(repo persistence.MeetingRepository) *meetingStoreAdapter {
	return &meetingStoreAdapter{repo: repo}
}

func (a *meetingStoreAdapter) CreateMeeting(ctx context.Context, meeting application.Meeting) (application.Meeting, error) {
	if err := a.repo.CreateMeeting(ctx, toPersistenceMeeting(meeting)); err != nil {
		return application.Meeting{}, err
	}
	stored, err := a.repo.GetMeeting(ctx, meeting.ID)
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(stored), nil
}

func (a *meetingStoreAdapter) ListMeetingsOverlapping(ctx context.Context, roomIDs []string, start, end time.Time) ([]application.Meeting, error) {
	models, err := a.repo.ListMeetingsOverlapping(ctx, roomIDs, start, end)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	meetings := make([]application.Meeting, 0, len(models))
	for _, model := range models {
		meetings = append(meetings, toApplicationMeeting(model))
	}
	return meetings, nil
}

type meetingLedgerAdapter struct {
	repo persistence.MeetingRepository
}

func newMeetingLedgerAdapter(repo persistence.MeetingRepository) *meetingLedgerAdapter {
	return &meetingLedgerAdapter{repo: repo}
}

func (a *meetingLedgerAdapter) CountMeetingsEndingAfter(ctx context.Context, roomID string, reference time.Time) (int, error) {
	return a.repo.CountMeetingsEndingAfter(ctx, roomID, reference)
}

type userStoreAdapter struct {
	repo persistence.UserRepository
}

func newUserStoreAdapter(repo persistence.UserRepository) *userStoreAdapter {
	return &userStoreAdapter{repo: repo}
}

func (a *userStoreAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userStoreAdapter) GetUserWithHash(ctx context.Context, email string) (application.User, string, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, "", err
	}
	return toApplicationUser(stored), stored.PasswordHash, nil
}

type sessionStoreAdapter struct {
	repo persistence.SessionRepository
}

func newSessionStoreAdapter(repo persistence.SessionRepository) *sessionStoreAdapter {
	return &sessionStoreAdapter{repo: repo}
}

func (a *sessionStoreAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	if err := a.repo.CreateSession(ctx, toPersistenceSession(session)); err != nil {
		return application.Session{}, err
	}
	stored, err := a.repo.GetSession(ctx, session.Token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) error {
	return a.repo.RevokeSession(ctx, token, revokedAt)
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:             room.ID,
		RoomNumber:     room.RoomNumber,
		Floor:          room.Floor,
		AvailableSeats: room.AvailableSeats,
		CreatedAt:      room.CreatedAt,
		UpdatedAt:      room.UpdatedAt,
	}
}

func toApplicationRoom(room persistence.Room) application.Room {
	return application.Room{
		ID:             room.ID,
		RoomNumber:     room.RoomNumber,
		Floor:          room.Floor,
		AvailableSeats: room.AvailableSeats,
		CreatedAt:      room.CreatedAt,
		UpdatedAt:      room.UpdatedAt,
	}
}

func toApplicationRooms(models []persistence.Room) []application.Room {
	if len(models) == 0 {
		return nil
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms
}

func toPersistenceMeeting(meeting application.Meeting) persistence.Meeting {
	return persistence.Meeting{
		ID:          meeting.ID,
		RoomID:      meeting.RoomID,
		OrganizerID: meeting.OrganizerID,
		Start:       meeting.Start,
		End:         meeting.End,
		CreatedAt:   meeting.CreatedAt,
	}
}

func toApplicationMeeting(meeting persistence.Meeting) application.Meeting {
	return application.Meeting{
		ID:          meeting.ID,
		RoomID:      meeting.RoomID,
		OrganizerID: meeting.OrganizerID,
		Start:       meeting.Start,
		End:         meeting.End,
		CreatedAt:   meeting.CreatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationUser(user persistence.User) application.User {
	return application.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: session.RevokedAt,
	}
}

func toApplicationSession(session persistence.Session) application.Session {
	return application.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: session.RevokedAt,
	}
}
