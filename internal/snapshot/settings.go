package snapshot

// Settings holds user preferences stored in the snapshot document.
//
// Only the Sync* fields participate in remote merge; everything else is a
// device-local preference that must never be clobbered by another device's
// copy of the document.
type Settings struct {
	ShowCompleted bool `json:"show_completed_in_main"`
	AutoArchive   bool `json:"auto_archive_completed"`

	// Sync configuration: the only subset copied from remote snapshots.
	SyncEnabled      bool   `json:"sync_enabled"`
	SyncBaseURL      string `json:"sync_base_url"`
	SyncToken        string `json:"sync_token"`
	SyncUser         string `json:"sync_user"`
	SyncTimerEnabled bool   `json:"sync_timer_enabled"`
	SyncStrategyB    bool   `json:"sync_strategy_b"`
}

// DefaultSettings returns first-run settings. Sync stays disabled until the
// user configures it, so a fresh install never pulls over local data.
func DefaultSettings() Settings {
	return Settings{
		ShowCompleted:    true,
		AutoArchive:      true,
		SyncUser:         "default",
		SyncTimerEnabled: true,
		SyncStrategyB:    true,
	}
}

// ApplySyncFields copies the sync-configuration subset from remote,
// leaving every device-local field untouched.
func (s *Settings) ApplySyncFields(remote Settings) {
	s.SyncEnabled = remote.SyncEnabled
	s.SyncBaseURL = remote.SyncBaseURL
	s.SyncToken = remote.SyncToken
	s.SyncUser = remote.SyncUser
	s.SyncTimerEnabled = remote.SyncTimerEnabled
	s.SyncStrategyB = remote.SyncStrategyB
}
