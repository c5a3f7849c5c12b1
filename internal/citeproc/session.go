package citeproc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ppiankov/cslbridge/internal/engine"
	"github.com/ppiankov/cslbridge/internal/model"
)

// State is the lifecycle state of a Session
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateFreed
	// StateDetached is an active session whose handle was released but not
	// replaced because creating the new one failed. Only ResetDriver and
	// RebuildProcessorState are accepted; a successful one makes it active again.
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateFreed:
		return "freed"
	case StateDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// Config is the style, locale and output format a session is bound to
type Config struct {
	// Style identifies the style (informational, used in logs)
	Style string

	// StyleXML is the CSL style source text
	StyleXML string

	// Locale is the language tag, forced on the engine only when OverrideLocale is set
	Locale         string
	OverrideLocale bool

	// Format is the output format (html, plain, rtf; "text" is accepted for plain)
	Format string
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithIDGenerator replaces the random cluster id generator
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Session) {
		s.newID = gen
	}
}

// Session owns one engine handle bound to one style, locale and output format.
//
// The handle is exclusively owned: it is replaced only by ResetDriver (the old
// one is released first) and released for good by Free. Methods serialize on
// an internal mutex, so destructive operations always complete before the next
// operation reaches the handle.
type Session struct {
	mu sync.Mutex

	system    System
	newDriver engine.Constructor
	cfg       Config
	driver    engine.Driver
	state     State
	failed    bool

	logger *slog.Logger
	newID  IDGenerator
}

// NewSession creates a session and its first engine handle. Creation failures
// (bad style, engine init, locale fetch) are returned as is; nothing is retried.
func NewSession(ctx context.Context, newDriver engine.Constructor, system System, cfg Config, opts ...Option) (*Session, error) {
	s := &Session{
		system:    system,
		newDriver: newDriver,
		cfg:       cfg,
		state:     StateUninitialized,
		logger:    slog.Default(),
		newID:     NewClusterID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.Format = NormalizeFormat(s.cfg.Format)

	driver, err := s.createDriver(ctx)
	if err != nil {
		return nil, err
	}
	s.driver = driver
	s.state = StateActive

	s.logger.Debug("engine session created",
		"style", s.cfg.Style,
		"locale", s.cfg.Locale,
		"override_locale", s.cfg.OverrideLocale,
		"format", s.cfg.Format)

	return s, nil
}

// NormalizeFormat maps format aliases to engine format names
func NormalizeFormat(format string) string {
	if format == "text" {
		return "plain"
	}
	return format
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive && s.driver == nil {
		return StateDetached
	}
	return s.state
}

// Failed reports whether a handle release failed. A failed session rejects
// every further operation.
func (s *Session) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Format returns the current output format
func (s *Session) Format() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Format
}

func (s *Session) createDriver(ctx context.Context) (engine.Driver, error) {
	opts := engine.Options{
		Style:         s.cfg.StyleXML,
		Format:        s.cfg.Format,
		Fetcher:       engine.LocaleFetcherFunc(s.fetchLocale),
		SortCitations: true,
	}
	if s.cfg.OverrideLocale {
		opts.LocaleOverride = s.cfg.Locale
	}

	driver, err := s.newDriver(ctx, opts)
	if err != nil {
		if errors.Is(err, ErrLocaleFetch) {
			return nil, fmt.Errorf("create engine: %w", err)
		}
		return nil, fmt.Errorf("%w: create engine: %w", ErrEngineInit, err)
	}
	return driver, nil
}

func (s *Session) fetchLocale(ctx context.Context, lang string) (string, error) {
	if s.system.Locales == nil {
		return "", fmt.Errorf("%w: %s: no locale retriever configured", ErrLocaleFetch, lang)
	}
	xml, err := s.system.Locales.RetrieveLocale(ctx, lang)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrLocaleFetch, lang, err)
	}
	return xml, nil
}

// usable rejects operations on freed or failed sessions
func (s *Session) usable() error {
	if s.state == StateFreed {
		return fmt.Errorf("%w: session freed", ErrSessionClosed)
	}
	if s.failed {
		return fmt.Errorf("%w: session failed", ErrSessionClosed)
	}
	return nil
}

// active additionally requires a live handle
func (s *Session) active() error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.driver == nil {
		return fmt.Errorf("%w: no engine handle", ErrSessionClosed)
	}
	return nil
}

// ResetDriver releases the current handle and creates a new one with the
// current style, locale and format. A release failure is always returned and
// leaves the session failed. If only the creation fails the session is left
// detached until a later reset succeeds.
func (s *Session) ResetDriver(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetDriver(ctx)
}

func (s *Session) resetDriver(ctx context.Context) error {
	if err := s.usable(); err != nil {
		return err
	}

	if s.driver != nil {
		err := s.driver.Free()
		s.driver = nil
		if err != nil {
			s.failed = true
			return fmt.Errorf("%w: reset driver: %w", ErrHandleRelease, err)
		}
	}

	driver, err := s.createDriver(ctx)
	if err != nil {
		return err
	}
	s.driver = driver

	s.logger.Debug("driver reset", "style", s.cfg.Style, "format", s.cfg.Format)
	return nil
}

// SetOutputFormat switches the live handle to another format. Setting the
// current format again is a no-op.
func (s *Session) SetOutputFormat(format string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.active(); err != nil {
		return err
	}

	format = NormalizeFormat(format)
	if format == s.cfg.Format {
		return nil
	}
	if err := s.driver.SetOutputFormat(format); err != nil {
		return fmt.Errorf("set output format %s: %w", format, err)
	}

	s.logger.Debug("output format changed", "from", s.cfg.Format, "to", format)
	s.cfg.Format = format
	return nil
}

// BuildCluster converts a citation into a cluster, registering its references
// with the handle. A generated cluster id is written back into citation.
func (s *Session) BuildCluster(ctx context.Context, citation *model.Citation) (model.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.active(); err != nil {
		return model.Cluster{}, err
	}
	return s.buildCluster(ctx, citation)
}

// InsertCluster forwards a cluster to the handle
func (s *Session) InsertCluster(cluster model.Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.active(); err != nil {
		return err
	}
	if err := s.driver.InsertCluster(cluster); err != nil {
		return fmt.Errorf("insert cluster %s: %w", cluster.ID, err)
	}
	return nil
}

// InsertCitation builds a cluster from citation and inserts it
func (s *Session) InsertCitation(ctx context.Context, citation *model.Citation) (model.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.active(); err != nil {
		return model.Cluster{}, err
	}
	cluster, err := s.buildCluster(ctx, citation)
	if err != nil {
		return model.Cluster{}, err
	}
	if err := s.driver.InsertCluster(cluster); err != nil {
		return model.Cluster{}, fmt.Errorf("insert cluster %s: %w", cluster.ID, err)
	}
	return cluster, nil
}

// PreviewCluster renders cluster against a hypothetical order without
// changing committed document state. An empty format means the session format.
func (s *Session) PreviewCluster(cluster model.Cluster, order []model.ClusterPosition, format string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.active(); err != nil {
		return "", err
	}
	return s.previewCluster(cluster, order, format)
}

func (s *Session) previewCluster(cluster model.Cluster, order []model.ClusterPosition, format string) (string, error) {
	format = NormalizeFormat(format)
	if format == "" {
		format = s.cfg.Format
	}

	text, err := s.driver.PreviewCluster(cluster, order, format)
	if err != nil {
		return "", fmt.Errorf("preview cluster %s: %w", cluster.ID, err)
	}
	return text, nil
}

// PreviewCitation renders citation as if it were committed between the
// citations before and after it
func (s *Session) PreviewCitation(ctx context.Context, citation *model.Citation, before, after []model.CitationPosition, format string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.active(); err != nil {
		return "", err
	}

	cluster, err := s.buildCluster(ctx, citation)
	if err != nil {
		return "", err
	}
	order, err := PreviewOrder(before, after, model.ClusterPosition{ID: cluster.ID, Note: cluster.Note})
	if err != nil {
		return "", err
	}
	return s.previewCluster(cluster, order, format)
}

// SetClusterOrder replaces the whole-document order held by the handle
func (s *Session) SetClusterOrder(positions []model.CitationPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.active(); err != nil {
		return err
	}
	return s.setClusterOrder(positions)
}

func (s *Session) setClusterOrder(positions []model.CitationPosition) error {
	order, err := ComputeOrder(positions)
	if err != nil {
		return err
	}
	if err := s.driver.SetClusterOrder(order); err != nil {
		return fmt.Errorf("set cluster order: %w", err)
	}
	return nil
}

// GetBatchedUpdates returns the clusters the engine reports as changed since
// the last call
func (s *Session) GetBatchedUpdates() ([]model.ClusterUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.active(); err != nil {
		return nil, err
	}
	updates, err := s.driver.BatchedUpdates()
	if err != nil {
		return nil, fmt.Errorf("batched updates: %w", err)
	}
	return updates, nil
}

// RebuildProcessorState rebuilds the handle from scratch: reset under format,
// insert every citation in list order, set the document order from the same
// list, then register the uncited items.
//
// Steps are not rolled back if a later one fails.
func (s *Session) RebuildProcessorState(ctx context.Context, citations []model.Citation, format string, uncited []model.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}

	if format = NormalizeFormat(format); format != "" {
		s.cfg.Format = format
	}
	if err := s.resetDriver(ctx); err != nil {
		return err
	}

	positions := make([]model.CitationPosition, 0, len(citations))
	for i := range citations {
		cluster, err := s.buildCluster(ctx, &citations[i])
		if err != nil {
			return err
		}
		if err := s.driver.InsertCluster(cluster); err != nil {
			return fmt.Errorf("insert cluster %s: %w", cluster.ID, err)
		}
		positions = append(positions, citations[i].Position())
	}

	if err := s.setClusterOrder(positions); err != nil {
		return err
	}
	if err := s.updateUncitedItems(ctx, uncited); err != nil {
		return err
	}

	s.logger.Debug("processor state rebuilt",
		"citations", len(citations),
		"uncited", len(uncited),
		"format", s.cfg.Format)
	return nil
}

// Free releases the handle; the session cannot be used afterwards. With
// ignoreErrors a release failure is logged and dropped, otherwise it is
// returned and the session is marked failed.
func (s *Session) Free(ignoreErrors bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFreed {
		return fmt.Errorf("%w: session already freed", ErrSessionClosed)
	}

	var err error
	if s.driver != nil {
		err = s.driver.Free()
		s.driver = nil
	}
	s.state = StateFreed

	if err != nil {
		if ignoreErrors {
			s.logger.Warn("ignoring engine handle release error", "style", s.cfg.Style, "error", err)
			return nil
		}
		s.failed = true
		return fmt.Errorf("%w: free: %w", ErrHandleRelease, err)
	}

	s.logger.Debug("session freed", "style", s.cfg.Style)
	return nil
}
