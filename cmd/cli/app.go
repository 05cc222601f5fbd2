package main

import (
	"context"
	"errors"
	"io"
	"path/filepath"

	"github.com/and161185/binqr/internal/client"
	"github.com/and161185/binqr/internal/config"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/repository/local"
	"github.com/and161185/binqr/internal/service"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// storage is what location and box commands need. *client.Client serves it remotely,
// localStorage from the on-device store.
type storage interface {
	ListLocations(ctx context.Context) ([]model.Location, error)
	CreateLocation(ctx context.Context, name, description string) (*model.Location, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, upd model.LocationUpdate) (*model.Location, error)
	DeleteLocation(ctx context.Context, id uuid.UUID) error
	CountLocationBoxes(ctx context.Context, id uuid.UUID) (int, error)

	ListBoxes(ctx context.Context) ([]model.Box, error)
	GetBox(ctx context.Context, id uuid.UUID) (*model.Box, error)
	CreateBox(ctx context.Context, name, description string, locationID uuid.UUID, contents []string, imageURL, aiAnalysis string) (*model.Box, error)
	UpdateBox(ctx context.Context, id uuid.UUID, upd model.BoxUpdate) (*model.Box, error)
	FindBoxByCode(ctx context.Context, payload string) (*model.Box, error)
	SearchBoxes(ctx context.Context, query string, locationID *uuid.UUID) ([]model.Box, error)
	DeleteBox(ctx context.Context, id uuid.UUID) error
}

var _ storage = (*client.Client)(nil)

// localUser owns every record of the local store.
var localUser = uuid.NewV5(uuid.NamespaceURL, "binqr:local")

// localStorage runs the storage services over the SQLite store for localUser.
type localStorage struct {
	locations service.LocationService
	boxes     service.BoxService
}

func newLocalStorage(s *local.Store, log *zap.Logger) *localStorage {
	locRepo, boxRepo := local.NewLocationRepo(s), local.NewBoxRepo(s)
	return &localStorage{
		locations: service.NewLocationService(locRepo, service.WithLogger(log)),
		boxes:     service.NewBoxService(boxRepo, locRepo, service.WithLogger(log)),
	}
}

func (l *localStorage) ListLocations(ctx context.Context) ([]model.Location, error) {
	return l.locations.List(ctx, localUser)
}

func (l *localStorage) CreateLocation(ctx context.Context, name, description string) (*model.Location, error) {
	return l.locations.Create(ctx, localUser, name, description)
}

func (l *localStorage) UpdateLocation(ctx context.Context, id uuid.UUID, upd model.LocationUpdate) (*model.Location, error) {
	return l.locations.Update(ctx, localUser, id, upd)
}

func (l *localStorage) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	return l.locations.Delete(ctx, localUser, id)
}

func (l *localStorage) CountLocationBoxes(ctx context.Context, id uuid.UUID) (int, error) {
	return l.locations.BoxCount(ctx, localUser, id)
}

func (l *localStorage) ListBoxes(ctx context.Context) ([]model.Box, error) {
	return l.boxes.List(ctx, localUser)
}

func (l *localStorage) GetBox(ctx context.Context, id uuid.UUID) (*model.Box, error) {
	return l.boxes.Get(ctx, localUser, id)
}

func (l *localStorage) CreateBox(
	ctx context.Context, name, description string, locationID uuid.UUID, contents []string, imageURL, aiAnalysis string,
) (*model.Box, error) {
	return l.boxes.Create(ctx, localUser, service.NewBox{
		Name:        name,
		Description: description,
		LocationID:  locationID,
		Contents:    contents,
		ImageURL:    imageURL,
		AIAnalysis:  aiAnalysis,
	})
}

func (l *localStorage) UpdateBox(ctx context.Context, id uuid.UUID, upd model.BoxUpdate) (*model.Box, error) {
	return l.boxes.Update(ctx, localUser, id, upd)
}

func (l *localStorage) FindBoxByCode(ctx context.Context, payload string) (*model.Box, error) {
	return l.boxes.FindByCode(ctx, localUser, payload)
}

func (l *localStorage) SearchBoxes(ctx context.Context, query string, locationID *uuid.UUID) ([]model.Box, error) {
	return l.boxes.Search(ctx, localUser, query, locationID)
}

func (l *localStorage) DeleteBox(ctx context.Context, id uuid.UUID) error {
	return l.boxes.Delete(ctx, localUser, id)
}

var errNeedServer = errors.New("this command needs a server: set -addr or BINQR_ADDR")

// app carries what a command needs: the output, the remote client when a server is
// configured and the storage backend.
type app struct {
	out     io.Writer
	log     *zap.Logger
	remote  *client.Client
	store   storage
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Client, out io.Writer, log *zap.Logger) (*app, error) {
	a := &app{out: out, log: log}
	if cfg.Addr != "" {
		cc, err := client.Dial(cfg.Addr, client.TLSOptions{
			CAPath:     cfg.CAFile,
			SkipVerify: cfg.SkipVerify,
			Plaintext:  cfg.Plaintext,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, cc.Close)
		a.useRemote(cc, client.NewFileStore(cfg.Session))
		return a, nil
	}

	path := cfg.LocalDB
	if path == "" {
		path = filepath.Join(client.ConfigDir(), "local.db")
	}
	s, err := local.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, s.Close)
	a.store = newLocalStorage(s, log)
	return a, nil
}

func (a *app) useRemote(cc grpc.ClientConnInterface, tokens client.TokenStore) {
	a.remote = client.New(cc, tokens, client.WithLogger(a.log))
	a.store = a.remote
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func (a *app) server() (*client.Client, error) {
	if a.remote == nil {
		return nil, errNeedServer
	}
	return a.remote, nil
}
