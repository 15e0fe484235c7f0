package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/lo"

	"Distributor/internal/platform"
)

var (
	ErrPermissionDenied = errors.New("capture: permission denied")
	ErrNoActivity       = errors.New("capture: no activity available")
)

// TypedMIMETypes scopes the typed picker to spreadsheets. Some devices label
// CSV as plain text; octet-stream catches unrecognised files.
var TypedMIMETypes = []string{
	"text/csv",
	"text/comma-separated-values",
	"application/csv",
	"text/plain",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/octet-stream",
}

type Choice struct {
	Source Source `json:"source"`
	Label  string `json:"label"`
}

var Choices = []Choice{
	{Source: SourceFile, Label: "Choose File (CSV/Excel)"},
	{Source: SourceAnyFile, Label: "Choose Any File"},
	{Source: SourceCamera, Label: "Take Photo"},
}

const (
	NoticePermissions = "Permissions required for file upload"
	NoticeNoChooser   = "Cannot open file chooser"
	NoticeNoCamera    = "No camera available"
	NoticeImageFile   = "Error creating image file"
)

// Prompter shows the capture source choice. ok is false when dismissed.
type Prompter interface {
	ChooseSource(ctx context.Context, title string, choices []Choice) (src Source, ok bool)
}

type Permissions interface {
	Granted(p platform.Permission) bool
	// Request prompts for perms and reports the outcome of each.
	Request(ctx context.Context, perms []platform.Permission) map[platform.Permission]bool
}

// ActivityResult is what a picker or capture activity hands back.
type ActivityResult struct {
	OK   bool
	Data string
}

type Launcher interface {
	// CanHandle reports whether some activity can service in.
	CanHandle(in platform.Intent) bool
	// Start runs in and blocks until it returns. Implementations return
	// ErrNoActivity when nothing can service the intent.
	Start(ctx context.Context, in platform.Intent) (ActivityResult, error)
}

type Notifier interface {
	Notify(msg string)
}

type SelectorConfig struct {
	Tier        platform.Tier
	PicturesDir string
	Permissions Permissions
	Prompter    Prompter
	Launcher    Launcher
	Sharer      platform.FileSharer
	Notifier    Notifier
	Logger      *slog.Logger
	Now         func() time.Time
}

// Selector drives one capture from permission check to resolution.
type Selector struct {
	slot *Slot
	cfg  SelectorConfig
	log  *slog.Logger

	mu         sync.Mutex
	cancelPrev context.CancelFunc
}

func NewSelector(slot *Slot, cfg SelectorConfig) *Selector {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Selector{slot: slot, cfg: cfg, log: log}
}

// Request handles one browser capture request end to end. cb is invoked
// exactly once. The returned error classifies how the capture ended without
// a result; a cancelled prompt returns nil.
func (s *Selector) Request(ctx context.Context, cb Callback) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancelPrev != nil {
		s.cancelPrev()
	}
	s.cancelPrev = cancel
	s.mu.Unlock()
	defer cancel()

	t := s.slot.Begin(cb, SourceFile)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("capture panic", "ticket", t, "panic", r)
			s.notify(NoticeNoChooser)
			s.slot.ResolveIf(t, NoResult)
			err = fmt.Errorf("capture: %v", r)
		}
	}()

	if err := s.ensurePermissions(ctx); err != nil {
		s.notify(NoticePermissions)
		s.slot.ResolveIf(t, NoResult)
		return err
	}
	return s.present(ctx, t)
}

func (s *Selector) ensurePermissions(ctx context.Context) error {
	if s.cfg.Permissions == nil {
		return nil
	}
	required := platform.CapturePermissions(s.cfg.Tier)
	missing := lo.Filter(required, func(p platform.Permission, _ int) bool {
		return !s.cfg.Permissions.Granted(p)
	})
	if len(missing) == 0 {
		return nil
	}
	s.log.Info("capture permissions missing", "tier", s.cfg.Tier, "missing", missing)
	outcome := s.cfg.Permissions.Request(ctx, missing)
	if !lo.EveryBy(missing, func(p platform.Permission) bool { return outcome[p] }) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, missing)
	}
	return nil
}

func (s *Selector) present(ctx context.Context, t Ticket) error {
	src, ok := s.cfg.Prompter.ChooseSource(ctx, "Select File", Choices)
	if !ok {
		s.log.Debug("capture source prompt dismissed", "ticket", t)
		s.slot.ResolveIf(t, NoResult)
		return nil
	}
	switch src {
	case SourceFile:
		return s.dispatchTypedFilePicker(ctx, t)
	case SourceAnyFile:
		return s.dispatchUnrestrictedFilePicker(ctx, t)
	case SourceCamera:
		return s.dispatchCamera(ctx, t)
	default:
		s.slot.ResolveIf(t, NoResult)
		return fmt.Errorf("capture: unknown source %d", src)
	}
}

func (s *Selector) dispatchTypedFilePicker(ctx context.Context, t Ticket) error {
	in := platform.Intent{
		Action:         platform.ActionGetContent,
		MIME:           "*/*",
		ExtraMIMETypes: TypedMIMETypes,
	}
	if !s.cfg.Launcher.CanHandle(in) {
		s.log.Info("typed picker unavailable, falling back", "ticket", t)
		return s.dispatchUnrestrictedFilePicker(ctx, t)
	}
	if !s.slot.Dispatch(t, SourceFile, "") {
		return nil
	}
	res, err := s.cfg.Launcher.Start(ctx, in)
	if errors.Is(err, ErrNoActivity) {
		s.log.Info("typed picker refused, falling back", "ticket", t)
		return s.dispatchUnrestrictedFilePicker(ctx, t)
	}
	if err != nil {
		return s.fail(t, NoticeNoChooser, err)
	}
	s.HandleResult(t, res)
	return nil
}

func (s *Selector) dispatchUnrestrictedFilePicker(ctx context.Context, t Ticket) error {
	in := platform.Intent{
		Action:    platform.ActionGetContent,
		MIME:      "*/*",
		LocalOnly: true,
	}
	if !s.slot.Dispatch(t, SourceAnyFile, "") {
		return nil
	}
	res, err := s.cfg.Launcher.Start(ctx, in)
	if err != nil {
		return s.fail(t, NoticeNoChooser, err)
	}
	s.HandleResult(t, res)
	return nil
}

func (s *Selector) dispatchCamera(ctx context.Context, t Ticket) error {
	probe := platform.Intent{Action: platform.ActionImageCapture}
	if !s.cfg.Launcher.CanHandle(probe) {
		return s.fail(t, NoticeNoCamera, ErrNoActivity)
	}

	path, err := s.createImageFile()
	if err != nil {
		return s.fail(t, NoticeImageFile, err)
	}
	out := path
	if s.cfg.Sharer != nil {
		out, err = s.cfg.Sharer.Share(path, platform.SharedHandle, platform.FlagGrantWrite)
		if err != nil {
			_ = os.Remove(path)
			return s.fail(t, NoticeImageFile, err)
		}
	}
	if !s.slot.Dispatch(t, SourceCamera, path) {
		_ = os.Remove(path)
		return nil
	}

	in := platform.Intent{
		Action: platform.ActionImageCapture,
		Output: out,
		Flags:  platform.FlagGrantWrite,
	}
	res, err := s.cfg.Launcher.Start(ctx, in)
	if _, _, ok := s.slot.peek(t); !ok {
		// Superseded while the camera ran; nobody will claim the photo.
		_ = os.Remove(path)
		s.log.Debug("late camera result dropped", "ticket", t)
		return nil
	}
	if err != nil {
		_ = os.Remove(path)
		return s.fail(t, NoticeNoCamera, err)
	}
	s.HandleResult(t, res)
	return nil
}

// HandleResult resolves capture t from an activity result, interpreting it
// according to the source recorded at dispatch.
func (s *Selector) HandleResult(t Ticket, res ActivityResult) {
	source, transient, ok := s.slot.peek(t)
	if !ok {
		s.log.Debug("late capture result dropped", "ticket", t)
		return
	}
	if source != SourceCamera {
		if res.OK && res.Data != "" {
			s.slot.ResolveIf(t, Result{Path: res.Data})
			return
		}
		s.slot.ResolveIf(t, NoResult)
		return
	}

	if res.OK && transient != "" {
		if st, err := os.Stat(transient); err == nil && st.Size() > 0 {
			s.slot.ResolveIf(t, Result{Path: transient})
			return
		}
	}
	if transient != "" {
		_ = os.Remove(transient)
	}
	s.slot.ResolveIf(t, NoResult)
}

// createImageFile materialises a fresh, uniquely named image file for the
// camera to write into.
func (s *Selector) createImageFile() (string, error) {
	dir := s.cfg.PicturesDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "distributor", "Pictures")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	prefix := "JPEG_" + s.cfg.Now().Format("20060102_150405") + "_"
	f, err := os.CreateTemp(dir, prefix+"*.jpg")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func (s *Selector) fail(t Ticket, notice string, err error) error {
	s.log.Warn("capture failed", "ticket", t, "err", err)
	s.notify(notice)
	s.slot.ResolveIf(t, NoResult)
	return err
}

func (s *Selector) notify(msg string) {
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.Notify(msg)
	}
}
