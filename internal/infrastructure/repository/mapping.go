package repository

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/infrastructure/db/models"
)

func toBatchModel(b domain.Batch) (models.ImportBatch, error) {
	ctxJSON, err := json.Marshal(b.Context)
	if err != nil {
		return models.ImportBatch{}, fmt.Errorf("encode import context: %w", err)
	}
	return models.ImportBatch{
		ID:               b.ID,
		Entity:           string(b.Entity),
		UploadedBy:       b.UploadedBy,
		BranchID:         b.BranchID,
		OriginalFilename: b.OriginalFilename,
		StoredFilename:   b.StoredFilename,
		FileSize:         b.FileSize,
		FileKind:         string(b.FileKind),
		Context:          datatypes.JSON(ctxJSON),
		Status:           string(b.Status),
		TotalRows:        b.TotalRows,
		ValidRows:        b.ValidRows,
		InvalidRows:      b.InvalidRows,
		ImportedRows:     b.ImportedRows,
		ErrorMessage:     b.ErrorMessage,
		UploadedAt:       b.UploadedAt,
		ValidatedAt:      b.ValidatedAt,
		ImportStartedAt:  b.ImportStartedAt,
		CompletedAt:      b.CompletedAt,
		CancelledAt:      b.CancelledAt,
	}, nil
}

func fromBatchModel(m models.ImportBatch) (domain.Batch, error) {
	var ctx domain.ImportContext
	if len(m.Context) > 0 {
		if err := json.Unmarshal(m.Context, &ctx); err != nil {
			return domain.Batch{}, fmt.Errorf("decode import context of batch %s: %w", m.ID, err)
		}
	}
	return domain.Batch{
		ID:               m.ID,
		Entity:           domain.EntityType(m.Entity),
		UploadedBy:       m.UploadedBy,
		BranchID:         m.BranchID,
		OriginalFilename: m.OriginalFilename,
		StoredFilename:   m.StoredFilename,
		FileSize:         m.FileSize,
		FileKind:         domain.FileKind(m.FileKind),
		Context:          ctx,
		Status:           domain.BatchStatus(m.Status),
		TotalRows:        m.TotalRows,
		ValidRows:        m.ValidRows,
		InvalidRows:      m.InvalidRows,
		ImportedRows:     m.ImportedRows,
		ErrorMessage:     m.ErrorMessage,
		UploadedAt:       m.UploadedAt,
		ValidatedAt:      m.ValidatedAt,
		ImportStartedAt:  m.ImportStartedAt,
		CompletedAt:      m.CompletedAt,
		CancelledAt:      m.CancelledAt,
	}, nil
}

// stagingJSON encodes the list and map columns of a staging row. Nil
// values are stored as empty JSON containers.
type stagingJSON struct {
	errors      []byte
	parseIssues []byte
	unmapped    []byte
}

func encodeStagingJSON(row domain.StagingRow) (stagingJSON, error) {
	var out stagingJSON
	var err error
	if out.errors, err = marshalList(row.Errors); err != nil {
		return stagingJSON{}, fmt.Errorf("encode errors of row %d: %w", row.RowNumber, err)
	}
	if out.parseIssues, err = marshalList(row.ParseIssues); err != nil {
		return stagingJSON{}, fmt.Errorf("encode parse issues of row %d: %w", row.RowNumber, err)
	}
	unmapped := row.Unmapped
	if unmapped == nil {
		unmapped = map[string]string{}
	}
	if out.unmapped, err = json.Marshal(unmapped); err != nil {
		return stagingJSON{}, fmt.Errorf("encode unmapped cells of row %d: %w", row.RowNumber, err)
	}
	return out, nil
}

func marshalList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func decodeStagingColumns(m models.StagingColumns) (domain.StagingRow, error) {
	row := domain.StagingRow{
		ID:           m.ID,
		BatchID:      m.BatchID,
		RowNumber:    m.RowNumber,
		Status:       domain.RowStatus(m.Status),
		Imported:     m.Imported,
		ProductionID: m.ProductionID,
	}
	if err := unmarshalColumn(m.Errors, &row.Errors); err != nil {
		return domain.StagingRow{}, fmt.Errorf("decode errors of row %d: %w", m.RowNumber, err)
	}
	if err := unmarshalColumn(m.ParseIssues, &row.ParseIssues); err != nil {
		return domain.StagingRow{}, fmt.Errorf("decode parse issues of row %d: %w", m.RowNumber, err)
	}
	if err := unmarshalColumn(m.Unmapped, &row.Unmapped); err != nil {
		return domain.StagingRow{}, fmt.Errorf("decode unmapped cells of row %d: %w", m.RowNumber, err)
	}
	if len(row.Unmapped) == 0 {
		row.Unmapped = nil
	}
	return row, nil
}

func unmarshalColumn(raw datatypes.JSON, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func fromStudentImport(m models.StudentImport) (domain.StagingRow, error) {
	row, err := decodeStagingColumns(m.StagingColumns)
	if err != nil {
		return domain.StagingRow{}, err
	}
	row.Student = &domain.StudentFields{
		AdmissionNumber: m.AdmissionNumber,
		FirstName:       m.FirstName,
		LastName:        m.LastName,
		Email:           m.Email,
		Phone:           m.Phone,
		DateOfBirth:     m.DateOfBirth,
		Gender:          m.Gender,
		Grade:           m.Grade,
		Section:         m.Section,
		RollNumber:      m.RollNumber,
		BranchCode:      m.BranchCode,
		AdmissionDate:   m.AdmissionDate,
		GuardianName:    m.GuardianName,
		GuardianPhone:   m.GuardianPhone,
		GuardianEmail:   m.GuardianEmail,
		Address:         m.Address,
		BloodGroup:      m.BloodGroup,
		Nationality:     m.Nationality,
		Remarks:         m.Remarks,
	}
	return row, nil
}

func fromTeacherImport(m models.TeacherImport) (domain.StagingRow, error) {
	row, err := decodeStagingColumns(m.StagingColumns)
	if err != nil {
		return domain.StagingRow{}, err
	}
	row.Teacher = &domain.TeacherFields{
		EmployeeID:      m.EmployeeID,
		FirstName:       m.FirstName,
		LastName:        m.LastName,
		Email:           m.Email,
		Phone:           m.Phone,
		DateOfBirth:     m.DateOfBirth,
		Gender:          m.Gender,
		Qualification:   m.Qualification,
		Specialization:  m.Specialization,
		Designation:     m.Designation,
		Department:      m.Department,
		JoiningDate:     m.JoiningDate,
		ExperienceYears: m.ExperienceYears,
		BranchCode:      m.BranchCode,
		Address:         m.Address,
		Remarks:         m.Remarks,
	}
	return row, nil
}

func fromBranchModel(m models.Branch) domain.Branch {
	return domain.Branch{ID: m.ID, Code: m.Code, Capacity: m.Capacity}
}
