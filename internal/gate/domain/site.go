package domain

// DefaultSiteID names the implicit site of a single-tenant deployment.
const DefaultSiteID = "default"

// Site is one logical tenant. Every persisted entity is owned by a site.
type Site struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AdminEmail string `json:"admin_email"`
}

// DisplayName falls back to the ID when no name is configured.
func (s Site) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
