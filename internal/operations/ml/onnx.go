package ml

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"PaperTradeBot/config"
	"PaperTradeBot/internal/repositories"
	"PaperTradeBot/internal/services/signals"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type session struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *session) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// ONNXPredictor runs ONNX artifacts registered in ml_models. One session is
// kept per artifact for the life of the predictor.
type ONNXPredictor struct {
	models *repositories.MLModelRepository
	cfg    config.MLConfig
	log    *zap.Logger

	initOnce sync.Once
	initErr  error

	mu       sync.Mutex
	sessions map[string]*session
}

func NewONNXPredictor(db *gorm.DB, cfg config.MLConfig, log *zap.Logger) *ONNXPredictor {
	return &ONNXPredictor{
		models:   repositories.NewMLModelRepository(db),
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*session),
	}
}

func (p *ONNXPredictor) Predict(ctx context.Context, userID, modelID uint, features []float64) (int, error) {
	if len(features) != len(signals.FeatureNames) {
		return 0, fmt.Errorf("expected %d features, got %d", len(signals.FeatureNames), len(features))
	}

	path, err := p.artifactPath(ctx, userID, modelID)
	if err != nil {
		return 0, err
	}

	s, err := p.session(path)
	if err != nil {
		return 0, fmt.Errorf("load model %d: %w", modelID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	in := s.input.GetData()
	for i, f := range features {
		in[i] = float32(f)
	}
	if err := s.session.Run(); err != nil {
		return 0, fmt.Errorf("inference with model %d: %w", modelID, err)
	}
	return Decide(s.output.GetData()[0]), nil
}

// artifactPath resolves the owned model's artifact. Unknown, foreign or
// missing artifacts are all ErrModelNotFound.
func (p *ONNXPredictor) artifactPath(ctx context.Context, userID, modelID uint) (string, error) {
	model, err := p.models.FindOwned(ctx, modelID, userID)
	if err != nil {
		return "", fmt.Errorf("load model %d: %w", modelID, err)
	}
	if model == nil {
		return "", fmt.Errorf("model %d: %w", modelID, ErrModelNotFound)
	}
	if model.ArtifactPath == "" {
		return "", fmt.Errorf("model %d has no artifact: %w", modelID, ErrModelNotFound)
	}

	path := model.ArtifactPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.cfg.ArtifactDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("artifact %s: %w", path, ErrModelNotFound)
		}
		return "", fmt.Errorf("stat artifact %s: %w", path, err)
	}
	return path, nil
}

func (p *ONNXPredictor) session(path string) (*session, error) {
	p.initOnce.Do(func() {
		if p.cfg.SharedLibPath != "" {
			ort.SetSharedLibraryPath(p.cfg.SharedLibPath)
		}
		p.initErr = ort.InitializeEnvironment()
	})
	if p.initErr != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", p.initErr)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[path]; ok {
		return s, nil
	}

	s := &session{}
	var err error
	s.input, err = ort.NewTensor(ort.NewShape(1, int64(len(signals.FeatureNames))), make([]float32, len(signals.FeatureNames)))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	s.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	s.session, err = ort.NewAdvancedSession(path,
		[]string{p.cfg.InputName}, []string{p.cfg.OutputName},
		[]ort.Value{s.input}, []ort.Value{s.output}, nil)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	p.sessions[path] = s
	p.log.Info("onnx model loaded", zap.String("artifact", path))
	return s, nil
}

// Close releases every cached session and the runtime environment.
func (p *ONNXPredictor) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for path, s := range p.sessions {
		s.destroy()
		delete(p.sessions, path)
	}
	if p.initErr == nil && ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			p.log.Warn("destroy onnxruntime environment", zap.Error(err))
		}
	}
}
