package tools

// RegisterBuiltins registers every tool this server ships with. Called
// once at startup by cmd/fmmcp.
func RegisterBuiltins(r *Registry) {
	r.Register(JournalCreateTool{})
	r.Register(JournalListTool{})
	r.Register(JournalDeleteTool{})
	r.Register(PreferencesGetTool{})
	r.Register(PreferencesSetTool{})
	r.Register(RecordsPutTool{})
	r.Register(RecordsGetTool{})
	r.Register(RecordsListTool{})
	r.Register(RecordsDeleteTool{})
	r.Register(StatsGetTool{})
}
