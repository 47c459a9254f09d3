package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acadterm/gradebook-api/internal/models"
	"github.com/acadterm/gradebook-api/pkg/export"
	"github.com/acadterm/gradebook-api/pkg/storage"
)

type exportGradingReader interface {
	Marksheet(ctx context.Context, studentID, term string, year int) (*models.StudentMarksheet, error)
	CohortMarksheet(ctx context.Context, term string, year int) ([]models.StudentMarksheet, error)
	MissingMarks(ctx context.Context, term string, year int, offeringID, studentID string) ([]models.MissingMark, error)
}

type exportMarkReader interface {
	ListByOffering(ctx context.Context, offeringID string) ([]models.Mark, error)
}

type exportOfferingReader interface {
	FindByID(ctx context.Context, id string) (*models.OfferingDetail, error)
}

type exportEnrollmentReader interface {
	ListByOffering(ctx context.Context, offeringID string) ([]models.EnrollmentDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	grading     exportGradingReader
	marks       exportMarkReader
	offerings   exportOfferingReader
	enrollments exportEnrollmentReader
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(grading exportGradingReader, marks exportMarkReader, offerings exportOfferingReader, enrollments exportEnrollmentReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		grading:     grading,
		marks:       marks,
		offerings:   offerings,
		enrollments: enrollments,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds dataset according to job definition and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// GradebookCSV renders an offering's gradebook synchronously for an
// assigned lecturer's download.
func (s *ExportService) GradebookCSV(ctx context.Context, offeringID string) ([]byte, string, error) {
	dataset, title, err := s.buildGradebookDataset(ctx, offeringID)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("%s_%s.csv", sanitizeFilename(strings.ToLower(title)), time.Now().UTC().Format("20060102_150405"))
	return payload, filename, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	termPart := sanitizeFilename(fmt.Sprintf("%s_%d", job.Params.Term, job.Params.Year))
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), termPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeMarksheet:
		return s.buildMarksheetDataset(ctx, job.Params)
	case models.ReportTypeMissingMarks:
		return s.buildMissingMarksDataset(ctx, job.Params)
	case models.ReportTypeGradebook:
		if job.Params.OfferingID == nil {
			return export.Dataset{}, "", fmt.Errorf("gradebook report requires an offering")
		}
		return s.buildGradebookDataset(ctx, *job.Params.OfferingID)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildMarksheetDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	var sheets []models.StudentMarksheet
	if params.StudentID != nil {
		sheet, err := s.grading.Marksheet(ctx, *params.StudentID, params.Term, params.Year)
		if err != nil {
			return export.Dataset{}, "", err
		}
		sheets = []models.StudentMarksheet{*sheet}
	} else {
		cohort, err := s.grading.CohortMarksheet(ctx, params.Term, params.Year)
		if err != nil {
			return export.Dataset{}, "", err
		}
		sheets = cohort
	}

	dataRows := make([]map[string]string, 0, len(sheets))
	for _, sheet := range sheets {
		for _, result := range sheet.Results {
			dataRows = append(dataRows, map[string]string{
				"Reg No":      sheet.RegNo,
				"Student":     sheet.StudentName,
				"Course":      result.CourseCode,
				"Percent":     fmt.Sprintf("%.2f", result.Percent),
				"Letter":      result.Letter,
				"Points":      fmt.Sprintf("%.1f", result.Points),
				"Term GPA":    fmt.Sprintf("%.2f", sheet.GPA),
				"Term Avg":    fmt.Sprintf("%.2f", sheet.Average),
			})
		}
	}
	dataset := export.Dataset{
		Headers: []string{"Reg No", "Student", "Course", "Percent", "Letter", "Points", "Term GPA", "Term Avg"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Marksheet %s %d", params.Term, params.Year)
	return dataset, title, nil
}

func (s *ExportService) buildMissingMarksDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	offeringID := ""
	if params.OfferingID != nil {
		offeringID = *params.OfferingID
	}
	studentID := ""
	if params.StudentID != nil {
		studentID = *params.StudentID
	}
	missing, err := s.grading.MissingMarks(ctx, params.Term, params.Year, offeringID, studentID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(missing))
	for _, row := range missing {
		dataRows = append(dataRows, map[string]string{
			"Course":     row.CourseCode,
			"Student":    row.StudentName,
			"Student ID": row.StudentID,
			"Assessment": row.AssessmentName,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Course", "Student", "Student ID", "Assessment"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Missing Marks %s %d", params.Term, params.Year)
	return dataset, title, nil
}

func (s *ExportService) buildGradebookDataset(ctx context.Context, offeringID string) (export.Dataset, string, error) {
	offering, err := s.offerings.FindByID(ctx, offeringID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	roster, err := s.enrollments.ListByOffering(ctx, offeringID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	marks, err := s.marks.ListByOffering(ctx, offeringID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	scores := make(map[string]map[string]float64, len(roster))
	for _, mark := range marks {
		if scores[mark.StudentID] == nil {
			scores[mark.StudentID] = make(map[string]float64)
		}
		scores[mark.StudentID][mark.AssessmentID] = mark.Score
	}

	headers := []string{"Reg No", "Student"}
	for _, assessment := range offering.Assessments {
		headers = append(headers, fmt.Sprintf("%s (/%g)", assessment.Name, assessment.MaxScore))
	}

	dataRows := make([]map[string]string, 0, len(roster))
	for _, enrollment := range roster {
		row := map[string]string{
			"Reg No":  enrollment.StudentRegNo,
			"Student": enrollment.StudentName,
		}
		for _, assessment := range offering.Assessments {
			header := fmt.Sprintf("%s (/%g)", assessment.Name, assessment.MaxScore)
			if score, ok := scores[enrollment.StudentID][assessment.ID]; ok {
				row[header] = fmt.Sprintf("%.2f", score)
			} else {
				row[header] = ""
			}
		}
		dataRows = append(dataRows, row)
	}

	dataset := export.Dataset{Headers: headers, Rows: dataRows}
	title := fmt.Sprintf("Gradebook %s %s %d", offering.CourseCode, offering.Term, offering.Year)
	return dataset, title, nil
}
