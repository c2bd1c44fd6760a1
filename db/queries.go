package db

import (
	_ "embed"
)

// Schema

//go:embed sql/create_tables.sql
var CreateTablesSQL string

// Clip writes

//go:embed sql/upsert_clip.sql
var UpsertClipSQL string

//go:embed sql/touch_clip.sql
var TouchClipSQL string

//go:embed sql/repoint_clips.sql
var RepointClipsSQL string

// Clip reads

//go:embed sql/select_clips.sql
var SelectClipsSQL string

//go:embed sql/select_clip_stats.sql
var SelectClipStatsSQL string
