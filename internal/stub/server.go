// Package stub implements the analysis backend contract in-process. It backs
// cmd/stubserver for local development and stands in for the real service in
// end-to-end tests. Scoring is a simulation of the original service's
// heuristic fallback, not a real analysis pipeline.
package stub

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"analyzer-console/internal/companies"
	"analyzer-console/internal/shared/telemetry"
)

const companiesListCap = 100

// Server holds the simulated backend state.
type Server struct {
	mu        sync.RWMutex
	records   []*companies.Company // insertion order
	stepDelay time.Duration
}

// New constructs a Server. stepDelay is the simulated per-company analysis
// time; zero means companies complete as fast as the goroutine runs.
func New(stepDelay time.Duration) *Server {
	return &Server{stepDelay: stepDelay}
}

// Router builds the gin engine serving the backend contract.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.POST("/analyze-csv", s.analyzeCSV)
	api.GET("/progress/:batchID", s.progress)
	api.GET("/results/:batchID", s.results)
	api.GET("/export/:batchID", s.export)
	api.GET("/companies", s.listCompanies)
	api.DELETE("/batch/:batchID", s.deleteBatch)
	return r
}

func fail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func (s *Server) analyzeCSV(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "file is required")
		return
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		fail(c, http.StatusBadRequest, "File must be a CSV")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "unable to read file")
		return
	}
	defer file.Close()

	batch, err := parseCompanies(file)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(batch) == 0 {
		fail(c, http.StatusBadRequest, "No valid companies found in CSV")
		return
	}

	batchID := uuid.NewString()
	now := time.Now().UTC()
	for i := range batch {
		batch[i].ID = uuid.NewString()
		batch[i].BatchID = batchID
		batch[i].Status = companies.StatusPending
		batch[i].CreatedAt = now
	}

	s.mu.Lock()
	for i := range batch {
		s.records = append(s.records, &batch[i])
	}
	s.mu.Unlock()

	go s.processBatch(batchID)

	c.JSON(http.StatusOK, gin.H{
		"batch_id":        batchID,
		"total_companies": len(batch),
		"message":         fmt.Sprintf("Started analysis of %d companies", len(batch)),
	})
}

func (s *Server) progress(c *gin.Context) {
	batchID := c.Param("batchID")

	s.mu.RLock()
	total, completed, failed := 0, 0, 0
	for _, rec := range s.records {
		if rec.BatchID != batchID {
			continue
		}
		total++
		if rec.Status.Terminal() {
			completed++
		}
		if rec.Status == companies.StatusError {
			failed++
		}
	}
	s.mu.RUnlock()

	if total == 0 {
		fail(c, http.StatusNotFound, "Batch not found")
		return
	}

	status := "processing"
	if completed == total {
		status = "completed"
	}
	c.JSON(http.StatusOK, companies.ProgressSnapshot{
		BatchID:            batchID,
		TotalCompanies:     total,
		Completed:          completed,
		Failed:             failed,
		ProgressPercentage: float64(completed) / float64(total) * 100,
		Status:             status,
	})
}

func (s *Server) results(c *gin.Context) {
	batchID := c.Param("batchID")
	out := s.batchCompanies(batchID)
	if len(out) == 0 {
		fail(c, http.StatusNotFound, "Batch not found")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) export(c *gin.Context) {
	batchID := c.Param("batchID")
	out := s.batchCompanies(batchID)
	if len(out) == 0 {
		fail(c, http.StatusNotFound, "Batch not found")
		return
	}

	payload, err := exportPayload(out)
	if err != nil {
		fail(c, http.StatusInternalServerError, "export failed")
		return
	}
	filename := fmt.Sprintf("digital_native_analysis_%s.xlsx", batchID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload)
}

func (s *Server) listCompanies(c *gin.Context) {
	s.mu.RLock()
	out := make([]companies.Company, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > companiesListCap {
		out = out[:companiesListCap]
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteBatch(c *gin.Context) {
	batchID := c.Param("batchID")

	s.mu.Lock()
	kept := s.records[:0]
	deleted := 0
	for _, rec := range s.records {
		if rec.BatchID == batchID {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	s.mu.Unlock()

	if deleted == 0 {
		fail(c, http.StatusNotFound, "Batch not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Deleted %d companies from batch %s", deleted, batchID),
	})
}

func (s *Server) batchCompanies(batchID string) []companies.Company {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []companies.Company
	for _, rec := range s.records {
		if rec.BatchID == batchID {
			out = append(out, *rec)
		}
	}
	return out
}

// processBatch walks a batch's companies through analyzing to completed,
// one at a time, mimicking the real service's background task.
func (s *Server) processBatch(batchID string) {
	s.mu.RLock()
	var ids []string
	for _, rec := range s.records {
		if rec.BatchID == batchID {
			ids = append(ids, rec.ID)
		}
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.setStatus(id, companies.StatusAnalyzing)
		if s.stepDelay > 0 {
			time.Sleep(s.stepDelay)
		}
		s.complete(id)
	}
	telemetry.Info("stub.batch_processed", map[string]any{"batch_id": batchID})
}

func (s *Server) setStatus(id string, status companies.CompanyStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.ID == id {
			rec.Status = status
			return
		}
	}
}

func (s *Server) complete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.ID != id {
			continue
		}
		digital, incident, native := scoreCompany(rec)
		reasoning := "Automated scoring based on founding year, industry, and domain indicators."
		fitReasoning := "Scoring based on digital native characteristics and likely technical complexity."
		now := time.Now().UTC()
		rec.DigitalNativeScore = &digital
		rec.IncidentIOFitScore = &incident
		rec.IsDigitalNative = &native
		rec.DigitalNativeReasoning = &reasoning
		rec.IncidentIOFitReasoning = &fitReasoning
		rec.Status = companies.StatusCompleted
		rec.AnalyzedAt = &now
		return
	}
}

// scoreCompany reproduces the original service's heuristic fallback scorer.
func scoreCompany(rec *companies.Company) (digital, incident float64, native bool) {
	if rec.FoundedYear != nil && *rec.FoundedYear >= 2010 {
		digital += 30
	}
	if rec.Industry != nil {
		industry := strings.ToLower(*rec.Industry)
		for _, term := range []string{"saas", "software", "fintech", "ecommerce", "ai", "technology", "cloud", "digital"} {
			if strings.Contains(industry, term) {
				digital += 40
				break
			}
		}
	}
	domain := strings.ToLower(rec.Domain)
	for _, ext := range []string{".ai", ".io", ".tech", ".app"} {
		if strings.Contains(domain, ext) {
			digital += 10
			break
		}
	}
	if digital > 100 {
		digital = 100
	}
	if digital >= 50 {
		incident = digital * 0.8
	}
	return digital, incident, digital >= 60
}

// parseCompanies reads the uploaded CSV into company records. Only name and
// domain are required; optional columns become nil when blank.
func parseCompanies(file io.Reader) ([]companies.Company, error) {
	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("Error processing CSV: %v", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, required := range []string{"name", "domain"} {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("Missing required columns: %s", strings.Join(missing, ", "))
	}

	cell := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
	optional := func(row []string, name string) *string {
		if v := cell(row, name); v != "" {
			return &v
		}
		return nil
	}

	var out []companies.Company
	for _, row := range rows[1:] {
		name := cell(row, "name")
		domain := cell(row, "domain")
		if name == "" || domain == "" {
			continue
		}
		rec := companies.Company{
			Name:          name,
			Domain:        domain,
			Industry:      optional(row, "industry"),
			EmployeeCount: optional(row, "employee_count"),
			Location:      optional(row, "location"),
			Description:   optional(row, "description"),
		}
		if v := cell(row, "founded_year"); v != "" {
			if year, err := strconv.Atoi(v); err == nil {
				rec.FoundedYear = &year
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// exportPayload renders results as delimited rows. The orchestrator treats
// the payload as opaque bytes; a real workbook writer is not simulated.
func exportPayload(out []companies.Company) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{
		"Company Name", "Domain", "Industry", "Founded Year", "Employee Count",
		"Location", "Digital Native Score (%)", "Is Digital Native",
		"Incident.io Fit Score (%)", "Analysis Status",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	for _, rec := range out {
		row := []string{rec.Name, rec.Domain, str(rec.Industry), "", str(rec.EmployeeCount), str(rec.Location), "", "", "", string(rec.Status)}
		if rec.FoundedYear != nil {
			row[3] = strconv.Itoa(*rec.FoundedYear)
		}
		if rec.DigitalNativeScore != nil {
			row[6] = strconv.FormatFloat(*rec.DigitalNativeScore, 'f', 1, 64)
		}
		if rec.IsDigitalNative != nil {
			row[7] = strconv.FormatBool(*rec.IsDigitalNative)
		}
		if rec.IncidentIOFitScore != nil {
			row[8] = strconv.FormatFloat(*rec.IncidentIOFitScore, 'f', 1, 64)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
