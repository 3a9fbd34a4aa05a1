package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openpmo/costcontrol/internal/model"
)

// ExcelGenerator renders the project performance workbook.
type ExcelGenerator interface {
	Generate(report model.PerformanceReport) ([]byte, error)
}

// PDFGenerator renders the commitment summary document.
type PDFGenerator interface {
	Generate(doc model.CommitmentDocument) ([]byte, error)
}

type ExportService struct {
	evm         *EVMService
	evmRepo     EVMRepository
	commitments CommitmentRepository
	excel       ExcelGenerator
	pdf         PDFGenerator
}

func NewExportService(evm *EVMService, evmRepo EVMRepository, commitments CommitmentRepository, excel ExcelGenerator, pdf PDFGenerator) *ExportService {
	return &ExportService{
		evm:         evm,
		evmRepo:     evmRepo,
		commitments: commitments,
		excel:       excel,
		pdf:         pdf,
	}
}

type ExportResult struct {
	FileName string
	Content  []byte
}

// ExportPerformanceReport assembles the project rollup plus every account's
// time series into one workbook. The per-account sweep checks cancellation
// between accounts; a cancelled export returns nothing.
func (s *ExportService) ExportPerformanceReport(ctx context.Context, projectID uuid.UUID, asOf time.Time, principal model.Principal) (*ExportResult, error) {
	if projectID == uuid.Nil {
		return nil, fmt.Errorf("%w: project id is required", ErrValidation)
	}
	if asOf.IsZero() {
		return nil, fmt.Errorf("%w: as-of date is required", ErrValidation)
	}

	summary, err := s.evm.ProjectSummary(ctx, projectID, asOf, principal)
	if err != nil {
		return nil, err
	}

	accounts, err := s.evmRepo.ListAccountsByProject(ctx, projectID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	report := model.PerformanceReport{Summary: *summary}
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: export cancelled: %v", ErrPersistence, err)
		}
		records, err := s.evmRepo.ListRecordsByAccount(ctx, account.ID)
		if err != nil {
			return nil, mapRepoErr(err)
		}
		if len(records) == 0 {
			continue
		}
		report.Series = append(report.Series, model.AccountSeries{Account: account, Records: records})
	}

	content, err := s.excel.Generate(report)
	if err != nil {
		return nil, fmt.Errorf("%w: workbook generation: %v", ErrPersistence, err)
	}

	fileName := fmt.Sprintf("evm-%s-%s.xlsx", projectID, asOf.Format("20060102"))
	return &ExportResult{FileName: fileName, Content: content}, nil
}

// ExportCommitmentDocument renders the commitment, its lines, revision
// history and allocations as a PDF.
func (s *ExportService) ExportCommitmentDocument(ctx context.Context, commitmentID uuid.UUID, principal model.Principal) (*ExportResult, error) {
	commitment, err := s.commitments.GetCommitment(ctx, commitmentID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !principal.HasProjectAccess(commitment.ProjectID, model.RoleViewer) {
		return nil, ErrPermissionDenied
	}

	items, err := s.commitments.ListCommitmentItems(ctx, commitmentID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	revisions, err := s.commitments.ListCommitmentRevisions(ctx, commitmentID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	allocations, err := s.commitments.ListAllocations(ctx, commitmentID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	doc := model.CommitmentDocument{
		Commitment:  *commitment,
		Items:       items,
		Revisions:   revisions,
		Allocations: allocations,
	}
	content, err := s.pdf.Generate(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: document generation: %v", ErrPersistence, err)
	}

	fileName := fmt.Sprintf("commitment-%s.pdf", sanitizeFileName(commitment.Number))
	return &ExportResult{FileName: fileName, Content: content}, nil
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
