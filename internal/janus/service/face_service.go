package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/auth"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/face"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
)

const (
	DefaultFaceThreshold  = 0.90
	DefaultFaceMargin     = 0.03
	DefaultMaxImageBytes  = 5 << 20
	DefaultExtractTimeout = 10 * time.Second
)

type FaceConfig struct {
	Extractor face.Extractor
	Templates store.FaceTemplateStore
	Users     store.UserStore
	Archive   face.Archive // optional
	Logger    *slog.Logger

	Threshold      float64
	Margin         float64
	MaxImageBytes  int
	ExtractTimeout time.Duration
	Now            Clock
}

type FaceService struct {
	extractor face.Extractor
	templates store.FaceTemplateStore
	users     store.UserStore
	archive   face.Archive
	logger    *slog.Logger

	threshold      float64
	margin         float64
	maxImageBytes  int
	extractTimeout time.Duration
	now            Clock
}

func NewFaceService(cfg FaceConfig) *FaceService {
	s := &FaceService{
		extractor:      cfg.Extractor,
		templates:      cfg.Templates,
		users:          cfg.Users,
		archive:        cfg.Archive,
		logger:         cfg.Logger,
		threshold:      cfg.Threshold,
		margin:         cfg.Margin,
		maxImageBytes:  cfg.MaxImageBytes,
		extractTimeout: cfg.ExtractTimeout,
		now:            cfg.Now.orDefault(),
	}
	if s.threshold <= 0 {
		s.threshold = DefaultFaceThreshold
	}
	if s.margin <= 0 {
		s.margin = DefaultFaceMargin
	}
	if s.maxImageBytes <= 0 {
		s.maxImageBytes = DefaultMaxImageBytes
	}
	if s.extractTimeout <= 0 {
		s.extractTimeout = DefaultExtractTimeout
	}
	return s
}

func (s *FaceService) MaxImageBytes() int { return s.maxImageBytes }

// Enroll replaces userID's template with one extracted from image.
func (s *FaceService) Enroll(ctx context.Context, p auth.Principal, userID string, image []byte) error {
	userID = strings.TrimSpace(userID)
	if !p.CanActFor(userID) {
		return ErrForbidden
	}
	if err := s.checkImage(image); err != nil {
		return err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return mapNotFound(err)
	}

	emb, err := s.extract(ctx, image)
	if err != nil {
		return err
	}

	at := s.now().UTC()
	if err := s.templates.PutTemplate(ctx, store.FaceTemplate{
		UserID:     userID,
		Embedding:  emb,
		CapturedAt: at,
	}); err != nil {
		return mapNotFound(err)
	}
	s.logger.Info("face: template enrolled", "user_id", userID, "dims", len(emb), "by", p.UserID)

	if s.archive != nil {
		if err := s.archive.Save(ctx, userID, image, at); err != nil {
			s.logger.Warn("face: archive capture failed", "user_id", userID, "err", err)
		}
	}
	return nil
}

// Match identifies the enrolled user in image. It fails closed: a weak
// best score or a runner-up too close to the best is ErrNoMatch.
func (s *FaceService) Match(ctx context.Context, image []byte) (string, error) {
	if err := s.checkImage(image); err != nil {
		return "", err
	}
	probe, err := s.extract(ctx, image)
	if err != nil {
		return "", err
	}

	templates, err := s.templates.ListTemplates(ctx)
	if err != nil {
		return "", err
	}

	bestID := ""
	best, second := -1.0, -1.0
	for _, t := range templates {
		sim := face.Cosine(probe, t.Embedding)
		switch {
		case sim > best:
			second = best
			best, bestID = sim, t.UserID
		case sim > second:
			second = sim
		}
	}

	if bestID == "" || best < s.threshold {
		return "", ErrNoMatch
	}
	if second >= s.threshold && best-second < s.margin {
		s.logger.Info("face: ambiguous match", "best", best, "runner_up", second)
		return "", ErrNoMatch
	}
	return bestID, nil
}

func (s *FaceService) checkImage(image []byte) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	if len(image) > s.maxImageBytes {
		return ErrImageTooLarge
	}
	return nil
}

func (s *FaceService) extract(ctx context.Context, image []byte) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()

	emb, err := s.extractor.Extract(ctx, image)
	switch {
	case err == nil && len(emb) == 0:
		return nil, ErrNoFaceDetected
	case err == nil:
		return emb, nil
	case errors.Is(err, face.ErrNoFace), errors.Is(err, context.DeadlineExceeded):
		return nil, ErrNoFaceDetected
	case errors.Is(err, face.ErrUndecodable):
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	default:
		return nil, fmt.Errorf("extract embedding: %w", err)
	}
}
