package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"classroom/internal/models"
)

// ExportData is the JSON document written by an export
type ExportData struct {
	Version     string       `json:"version"`
	ExportedAt  time.Time    `json:"exported_at"`
	StorageType string       `json:"storage_type"`
	Users       []UserExport `json:"users"`
}

// UserExport is a user record without credentials
type UserExport struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	AuthMethod      string    `json:"auth_method"`
	OAuthProvider   string    `json:"oauth_provider,omitempty"`
	ClassSubject    string    `json:"class_subject,omitempty"`
	ProfileComplete bool      `json:"profile_complete"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ExportService writes user exports
type ExportService struct {
	users       *UserService
	storageType string
	logger      *zap.SugaredLogger
}

// NewExportService creates a new export service
func NewExportService(users *UserService, storageType string, logger *zap.SugaredLogger) *ExportService {
	return &ExportService{users: users, storageType: storageType, logger: logger}
}

// Export writes every user to outputPath
func (s *ExportService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}
	s.logger.Infow("Users exported", "path", outputPath)
	return nil
}

// ExportToWriter writes every user as indented JSON
func (s *ExportService) ExportToWriter(ctx context.Context, w io.Writer) error {
	users, err := s.users.ExportUsers(ctx)
	if err != nil {
		return err
	}

	data := &ExportData{
		Version:     "1.0",
		ExportedAt:  time.Now().UTC(),
		StorageType: s.storageType,
		Users:       make([]UserExport, 0, len(users)),
	}
	for i := range users {
		data.Users = append(data.Users, toUserExport(&users[i]))
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	s.logger.Infow("Export complete", "users", len(data.Users))
	return nil
}

func toUserExport(u *models.User) UserExport {
	return UserExport{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            string(u.Role),
		AuthMethod:      u.AuthMethod().String(),
		OAuthProvider:   u.External.Provider,
		ClassSubject:    u.ClassSubject,
		ProfileComplete: u.ProfileComplete,
		IsActive:        u.IsActive,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}
