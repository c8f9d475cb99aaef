package store

import "time"

type Organization struct {
	ID          string
	Name        string
	Code        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Department struct {
	ID             string
	OrganizationID string
	Name           string
	Code           string
	Description    string
	HeadUserID     *string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	// Joined counts for API responses
	MemberCount   int
	DocumentCount int
}

type User struct {
	ID             string
	Email          string
	PasswordHash   string
	DisplayName    string
	Role           string
	OrganizationID *string
	DepartmentID   *string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DocumentCategory struct {
	ID             string
	OrganizationID string
	Name           string
	Code           string
	Description    string
	CreatedBy      *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Document struct {
	ID             string
	Name           string
	Title          string
	Description    string
	FileType       string
	FileCategory   string
	SizeBytes      int64
	FileOwner      string
	CategoryID     *string
	OrganizationID string
	DepartmentID   string
	CreatedBy      *string
	ExpireDate     *time.Time
	Status         string
	ArchivedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type OrganizationLicense struct {
	ID                 string
	OrganizationID     string
	SubscriptionStatus string
	StartDate          time.Time
	EndDate            time.Time
	TrialDays          int
	MaxUsers           int
	MaxStorageGB       int
	LastChecked        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// LicenseStatus is a row of the organization_license_status view:
// organization metadata joined with its license and live usage counts.
// DaysRemaining and IsActive are computed against now(), never stored.
type LicenseStatus struct {
	OrganizationID   string
	OrganizationName string
	OrganizationCode string
	Status           string
	StartDate        time.Time
	EndDate          time.Time
	DaysRemaining    int
	IsActive         bool
	CurrentUsers     int
	MaxUsers         int
	MaxStorageGB     int
	LastChecked      *time.Time
}

// ExpiredDocument is a row of the expired_documents view.
type ExpiredDocument struct {
	ID               string
	Name             string
	Title            string
	OrganizationID   string
	OrganizationName string
	DepartmentID     string
	DepartmentName   string
	ExpireDate       time.Time
	Status           string
	ArchivedAt       *time.Time
}

type ActivityLog struct {
	ID             string
	UserID         *string
	UserName       string
	OrganizationID *string
	Action         string
	EntityType     string
	EntityID       string
	Detail         string
	CreatedAt      time.Time
}

type DocumentShare struct {
	ID         string
	DocumentID string
	Token      string
	CreatedBy  string
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

type PasswordReset struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// SummaryCounts backs the dashboard: row counts within the caller's scope.
type SummaryCounts struct {
	Organizations     int
	Departments       int
	Users             int
	ActiveDocuments   int
	ArchivedDocuments int
	ExpiringSoon      int
	StorageBytes      int64
}

// CategoryStats aggregates active documents per category.
type CategoryStats struct {
	CategoryID   string
	CategoryName string
	CategoryCode string
	DocCount     int
	TotalBytes   int64
}

// StorageUsage aggregates active-document storage per organization.
type StorageUsage struct {
	OrganizationID   string
	OrganizationName string
	OrganizationCode string
	TotalBytes       int64
	DocCount         int
}

// FileCategoryStats aggregates active documents per derived file bucket.
type FileCategoryStats struct {
	FileCategory string
	DocCount     int
	TotalBytes   int64
}

// RevisionInfo describes one committed metadata revision of a document.
type RevisionInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
