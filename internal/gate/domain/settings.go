package domain

// Settings keys. The names match the persisted option names so exported
// records stay compatible with existing installations.
const (
	KeyEnableRegistration = "bte_enable_registration_block"
	KeyEnableWooCommerce  = "bte_enable_woocommerce_block"
	KeyEnableCF7          = "bte_enable_cf7_block"
	KeyEnableWPForms      = "bte_enable_wpforms_block"
	KeyEnableFluentForms  = "bte_enable_fluentforms_block"
	KeyErrorMessage       = "bte_error_message"
	KeyNotifyAdmin        = "bte_notify_admin"
	KeyRoleBypass         = "bte_role_bypass"
	KeyAdminBlocklist     = "bte_admin_blocklist"
	KeyWhitelist          = "bte_whitelist"
	KeyEnableAutoUpdate   = "bte_enable_auto_update"
	KeyLogRetentionDays   = "bte_log_retention_days"

	// Internal keys, never exported or imported.
	KeyRemoteBlocklist = "bte_remote_blocklist"
	KeyRemoteUpdated   = "bte_remote_updated"
	KeyBlockedLog      = "bte_blocked_log"
)

const (
	DefaultErrorMessage     = "Temporary email addresses are not allowed."
	DefaultLogRetentionDays = 30
)

// exportableKeys is the import/export allow-list, in export order.
var exportableKeys = []string{
	KeyEnableRegistration,
	KeyEnableWooCommerce,
	KeyEnableCF7,
	KeyEnableWPForms,
	KeyEnableFluentForms,
	KeyErrorMessage,
	KeyNotifyAdmin,
	KeyRoleBypass,
	KeyAdminBlocklist,
	KeyWhitelist,
	KeyEnableAutoUpdate,
	KeyLogRetentionDays,
}

// Settings is the typed view of every recognised option.
type Settings struct {
	EnableRegistration bool     `json:"bte_enable_registration_block"`
	EnableWooCommerce  bool     `json:"bte_enable_woocommerce_block"`
	EnableCF7          bool     `json:"bte_enable_cf7_block"`
	EnableWPForms      bool     `json:"bte_enable_wpforms_block"`
	EnableFluentForms  bool     `json:"bte_enable_fluentforms_block"`
	ErrorMessage       string   `json:"bte_error_message"`
	NotifyAdmin        bool     `json:"bte_notify_admin"`
	RoleBypass         []string `json:"bte_role_bypass"`
	AdminBlocklist     []string `json:"bte_admin_blocklist"`
	Whitelist          []string `json:"bte_whitelist"`
	EnableAutoUpdate   bool     `json:"bte_enable_auto_update"`
	LogRetentionDays   int      `json:"bte_log_retention_days"`
}

// DefaultSettings returns the documented default for every option.
func DefaultSettings() Settings {
	return Settings{
		EnableRegistration: true,
		EnableWooCommerce:  true,
		EnableCF7:          true,
		EnableWPForms:      true,
		EnableFluentForms:  true,
		ErrorMessage:       DefaultErrorMessage,
		NotifyAdmin:        false,
		RoleBypass:         []string{},
		AdminBlocklist:     []string{},
		Whitelist:          []string{},
		EnableAutoUpdate:   true,
		LogRetentionDays:   DefaultLogRetentionDays,
	}
}

// ExportableKeys returns a copy of the import/export allow-list.
func ExportableKeys() []string {
	out := make([]string, len(exportableKeys))
	copy(out, exportableKeys)
	return out
}

// IsExportableKey reports whether key is on the import/export allow-list.
func IsExportableKey(key string) bool {
	for _, k := range exportableKeys {
		if k == key {
			return true
		}
	}
	return false
}

// DefaultValue returns the documented default for an exportable key.
func DefaultValue(key string) (any, bool) {
	d := DefaultSettings()
	switch key {
	case KeyEnableRegistration:
		return d.EnableRegistration, true
	case KeyEnableWooCommerce:
		return d.EnableWooCommerce, true
	case KeyEnableCF7:
		return d.EnableCF7, true
	case KeyEnableWPForms:
		return d.EnableWPForms, true
	case KeyEnableFluentForms:
		return d.EnableFluentForms, true
	case KeyErrorMessage:
		return d.ErrorMessage, true
	case KeyNotifyAdmin:
		return d.NotifyAdmin, true
	case KeyRoleBypass:
		return d.RoleBypass, true
	case KeyAdminBlocklist:
		return d.AdminBlocklist, true
	case KeyWhitelist:
		return d.Whitelist, true
	case KeyEnableAutoUpdate:
		return d.EnableAutoUpdate, true
	case KeyLogRetentionDays:
		return d.LogRetentionDays, true
	default:
		return nil, false
	}
}

// IsListKey reports whether key holds domain-list data. List keys follow the
// configured storage scope; everything else is always per site.
func IsListKey(key string) bool {
	switch key {
	case KeyAdminBlocklist, KeyWhitelist, KeyRemoteBlocklist, KeyRemoteUpdated:
		return true
	default:
		return false
	}
}
