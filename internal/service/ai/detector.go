package ai

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"photolabels/internal/config"
	"photolabels/internal/labels"
	"photolabels/internal/logger"
	"photolabels/internal/models"
	"photolabels/internal/service/imaging"
)

// DetectorService runs an SSD-style detection network loaded through gocv.
// A DetectorService is not safe for concurrent use; the inference pool gives
// each worker its own instance.
type DetectorService struct {
	net          gocv.Net
	ready        bool
	modelPath    string
	configPath   string
	labels       labels.Table
	threshold    float64
	inputSize    int
	maxDimension int
	logger       *logger.Logger
}

// NewDetectorService creates a detector. A network that fails to load is
// logged and left uninitialized; every DetectObjects call then fails with
// models.ErrInference instead of taking the server down.
func NewDetectorService(config *config.Config, table labels.Table, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		modelPath:    config.ModelPath,
		configPath:   config.ConfigPath,
		labels:       table,
		threshold:    config.DetectionThreshold,
		inputSize:    config.InputSize,
		maxDimension: config.MaxImageDimension,
		logger:       logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
		return service
	}

	return service
}

// initializeNet loads the network from the model and config files.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.ready = true
	s.logger.Info("Detection network initialized successfully")
	return nil
}

// Ready reports whether the network loaded.
func (s *DetectorService) Ready() bool {
	return s.ready
}

// Close releases the network.
func (s *DetectorService) Close() error {
	if !s.ready {
		return nil
	}
	s.ready = false
	return s.net.Close()
}

// DetectObjects decodes imageBytes and returns one observation per detected
// region above the confidence threshold, in network output order. Regions
// whose class id has no label are reported with an empty label.
func (s *DetectorService) DetectObjects(imageBytes []byte) ([]models.Observation, error) {
	normalized, err := imaging.Normalize(imageBytes, s.maxDimension)
	if err != nil {
		return nil, err
	}

	if !s.ready {
		return nil, errors.Wrap(models.ErrInference, "detection network not initialized")
	}

	mat, err := gocv.IMDecode(normalized.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, errors.Wrapf(models.ErrDecode, "failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, errors.Wrap(models.ErrDecode, "decoded image is empty")
	}

	size := image.Pt(s.inputSize, s.inputSize)
	blob := gocv.BlobFromImage(mat, 1.0/127.5, size, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")

	output := s.net.Forward("")
	defer output.Close()

	if output.Empty() || output.Total()%7 != 0 {
		return nil, errors.Wrapf(models.ErrInference, "unexpected network output of %d values", output.Total())
	}

	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	cols := float32(mat.Cols())
	height := float32(mat.Rows())

	var observations []models.Observation
	for i := 0; i < rows.Rows(); i++ {
		confidence := float64(rows.GetFloatAt(i, 2))
		if confidence <= s.threshold {
			continue
		}
		classID := int(rows.GetFloatAt(i, 1))

		region := image.Rect(
			int(rows.GetFloatAt(i, 3)*cols),
			int(rows.GetFloatAt(i, 4)*height),
			int(rows.GetFloatAt(i, 5)*cols),
			int(rows.GetFloatAt(i, 6)*height),
		)

		observations = append(observations, models.Observation{
			Label:      s.labels.Label(classID),
			Confidence: clamp(confidence),
			Region:     region,
		})
		s.logger.Debug("Detected class %d (%q) %.2f at %v", classID, s.labels.Label(classID), confidence, region)
	}

	return observations, nil
}

// DrawObservations draws observation boxes with their labels onto img and
// returns it as JPEG. Regions are in the coordinates of the normalized image.
func (s *DetectorService) DrawObservations(observations []models.Observation, img []byte) ([]byte, error) {
	red := color.RGBA{R: 255, G: 0, B: 0, A: 0}

	normalized, err := imaging.Normalize(img, s.maxDimension)
	if err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(normalized.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, errors.Wrapf(models.ErrDecode, "failed to decode image: %v", err)
	}
	defer mat.Close()

	for _, observation := range observations {
		if err := gocv.Rectangle(&mat, observation.Region, red, 2); err != nil {
			return nil, errors.Wrap(err, "failed to draw rectangle")
		}

		label := fmt.Sprintf("%s (%.2f)", observation.Label, observation.Confidence)
		pt := image.Pt(observation.Region.Min.X, observation.Region.Min.Y-5)
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.5, red, 1); err != nil {
			return nil, errors.Wrap(err, "failed to draw text")
		}
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode image")
	}
	defer buf.Close()

	finalImage := make([]byte, len(buf.GetBytes()))
	copy(finalImage, buf.GetBytes())
	return finalImage, nil
}

func clamp(confidence float64) float64 {
	switch {
	case confidence < 0:
		return 0
	case confidence > 1:
		return 1
	default:
		return confidence
	}
}
