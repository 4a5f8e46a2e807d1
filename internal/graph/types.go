package graph

import (
	"time"

	"github.com/arwynfr/drivesync/internal/driveid"
)

// User is the authenticated account's profile, as returned by Client.Me.
type User struct {
	ID          string
	DisplayName string
	Email       string
}

// Site is a SharePoint site, as returned by Client.SearchSites.
type Site struct {
	ID          string
	DisplayName string
	Name        string
	WebURL      string
}

// Organization is the authenticated account's tenant, as returned by
// Client.Organization. Personal accounts have no tenant: DisplayName is
// empty and callers must treat that as "no organization" rather than an error.
type Organization struct {
	DisplayName string
}

// Drive is one drive accessible to the authenticated account, as returned
// by Client.Drives and Client.SiteDrives.
type Drive struct {
	ID         driveid.ID
	Name       string
	DriveType  string
	OwnerName  string
	OwnerEmail string
	QuotaUsed  int64
	QuotaTotal int64
}

// ChildCountUnknown indicates the child count was not present in the API response.
const ChildCountUnknown = -1

// Item represents a OneDrive drive item (file, folder, or package).
// Fields are normalized from the Graph API response — callers never see raw API data.
type Item struct {
	ID            string
	Name          string
	DriveID       string // normalized: lowercase (Graph API casing is inconsistent)
	ParentID      string
	ParentPath    string // decoded folder path of the parent, e.g. "/Documents/Sub", "/" for drive root
	ParentDriveID string // drive containing parent (for cross-drive references)
	Size          int64
	ETag          string
	CTag          string
	IsFolder      bool
	IsDeleted     bool
	IsPackage     bool // OneNote packages — sync should skip these
	MimeType      string
	QuickXorHash  string // base64-encoded
	SHA1Hash      string // hex (Personal accounts only)
	SHA256Hash    string // hex (Business accounts, sometimes)
	CreatedAt     time.Time
	ModifiedAt    time.Time
	ChildCount    int    // ChildCountUnknown if not present
	DownloadURL   string // pre-authenticated, ephemeral; NEVER log (architecture.md §9.2)
}
