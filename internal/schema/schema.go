// Package schema is the catalog of warehouse relations: the two staging
// tables fed by bulk copy and the five star-schema tables populated by the
// transform/load stage. It is pure declarative data; rendering the
// definitions into dialect-specific DDL is a warehouse backend concern.
//
// Layout hints (SortKey, DistKey) are advisory. A columnar warehouse uses
// them for physical placement; a non-warehouse target ignores them.
package schema

// Type is the logical column type. Backends map it to a dialect SQL type.
type Type string

const (
	Text      Type = "text"
	Char      Type = "char"
	Int       Type = "int"
	BigInt    Type = "bigint"
	Float     Type = "float"
	Timestamp Type = "timestamp"
)

// ForeignKey references a column in another catalog relation.
type ForeignKey struct {
	Table  string
	Column string
}

// ColumnDef describes a single column of a catalog relation.
type ColumnDef struct {
	Name       string
	Type       Type
	NotNull    bool
	PrimaryKey bool
	// Identity marks an auto-incrementing surrogate key. Identity columns
	// are never listed in insert column lists; the target assigns them.
	Identity   bool
	References *ForeignKey
}

// TableDef describes one catalog relation.
type TableDef struct {
	Name    string
	Columns []ColumnDef

	// Uniques lists additional uniqueness constraints beyond the primary
	// key, one column set each.
	Uniques [][]string

	// SortKey and DistKey are physical layout hints for columnar targets.
	SortKey []string
	DistKey string
}

// ColumnNames returns the column names in declaration order.
func (t TableDef) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// InsertColumns returns the column names in declaration order, excluding
// identity columns, which the target populates itself.
func (t TableDef) InsertColumns() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Identity {
			continue
		}
		names = append(names, c.Name)
	}
	return names
}

// PrimaryKey returns the names of the primary key columns, if any.
func (t TableDef) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// StagingEvents holds raw user-activity log records, one row per event,
// verbatim and without constraints. user_id stays text because the raw logs
// carry empty ids on unauthenticated events.
var StagingEvents = TableDef{
	Name: "staging_events",
	Columns: []ColumnDef{
		{Name: "artist", Type: Text},
		{Name: "auth", Type: Text},
		{Name: "first_name", Type: Text},
		{Name: "gender", Type: Char},
		{Name: "item_in_session", Type: Int},
		{Name: "last_name", Type: Text},
		{Name: "length", Type: Float},
		{Name: "level", Type: Text},
		{Name: "location", Type: Text},
		{Name: "method", Type: Text},
		{Name: "page", Type: Text},
		{Name: "registration", Type: Float},
		{Name: "session_id", Type: Int},
		{Name: "song", Type: Text},
		{Name: "status", Type: Int},
		{Name: "ts", Type: BigInt},
		{Name: "user_agent", Type: Text},
		{Name: "user_id", Type: Text},
	},
}

// StagingSongs holds raw song-catalog records, one row per source file
// record, verbatim and without constraints.
var StagingSongs = TableDef{
	Name: "staging_songs",
	Columns: []ColumnDef{
		{Name: "num_songs", Type: Int},
		{Name: "artist_id", Type: Text},
		{Name: "artist_latitude", Type: Float},
		{Name: "artist_longitude", Type: Float},
		{Name: "artist_location", Type: Text},
		{Name: "artist_name", Type: Text},
		{Name: "song_id", Type: Text},
		{Name: "title", Type: Text},
		{Name: "duration", Type: Float},
		{Name: "year", Type: Int},
	},
}

// Users is the user dimension, one row per user id. The level column holds
// the most recently seen subscription level (last-write-wins on reload).
var Users = TableDef{
	Name: "users",
	Columns: []ColumnDef{
		{Name: "user_id", Type: Text, PrimaryKey: true},
		{Name: "first_name", Type: Text},
		{Name: "last_name", Type: Text},
		{Name: "gender", Type: Char},
		{Name: "level", Type: Text},
	},
	SortKey: []string{"user_id"},
}

// Artists is the artist dimension, one row per artist id.
var Artists = TableDef{
	Name: "artists",
	Columns: []ColumnDef{
		{Name: "artist_id", Type: Text, PrimaryKey: true},
		{Name: "name", Type: Text},
		{Name: "location", Type: Text},
		{Name: "latitude", Type: Float},
		{Name: "longitude", Type: Float},
	},
	SortKey: []string{"artist_id"},
}

// Songs is the song dimension, one row per song id, referencing Artists.
var Songs = TableDef{
	Name: "songs",
	Columns: []ColumnDef{
		{Name: "song_id", Type: Text, PrimaryKey: true},
		{Name: "title", Type: Text},
		{Name: "artist_id", Type: Text, NotNull: true, References: &ForeignKey{Table: "artists", Column: "artist_id"}},
		{Name: "year", Type: Int},
		{Name: "duration", Type: Float},
	},
	SortKey: []string{"song_id"},
	DistKey: "song_id",
}

// Time is the timestamp dimension, one row per distinct start time seen in
// a qualifying playback event. All other columns are derived from
// start_time in UTC.
var Time = TableDef{
	Name: "time",
	Columns: []ColumnDef{
		{Name: "start_time", Type: Timestamp, PrimaryKey: true},
		{Name: "hour", Type: Int},
		{Name: "day", Type: Int},
		{Name: "week", Type: Int},
		{Name: "month", Type: Int},
		{Name: "year", Type: Int},
		{Name: "weekday", Type: Text},
	},
	SortKey: []string{"start_time"},
}

// Songplays is the fact table. The surrogate songplay_id is assigned by the
// target; the (start_time, user_id, song_id, artist_id) set is unique so
// repeated loads cannot produce duplicate facts.
var Songplays = TableDef{
	Name: "songplays",
	Columns: []ColumnDef{
		{Name: "songplay_id", Type: Int, PrimaryKey: true, Identity: true},
		{Name: "start_time", Type: Timestamp, NotNull: true, References: &ForeignKey{Table: "time", Column: "start_time"}},
		{Name: "user_id", Type: Text, NotNull: true, References: &ForeignKey{Table: "users", Column: "user_id"}},
		{Name: "level", Type: Text},
		{Name: "song_id", Type: Text, NotNull: true, References: &ForeignKey{Table: "songs", Column: "song_id"}},
		{Name: "artist_id", Type: Text, NotNull: true, References: &ForeignKey{Table: "artists", Column: "artist_id"}},
		{Name: "session_id", Type: Int},
		{Name: "location", Type: Text},
		{Name: "user_agent", Type: Text},
	},
	Uniques: [][]string{{"start_time", "user_id", "song_id", "artist_id"}},
	SortKey: []string{"start_time", "user_id", "song_id", "artist_id"},
	DistKey: "song_id",
}

// CreateOrder returns all catalog relations in creation order: staging
// first, then dimensions, then the fact table that references them.
func CreateOrder() []TableDef {
	return []TableDef{
		StagingEvents,
		StagingSongs,
		Time,
		Users,
		Artists,
		Songs,
		Songplays,
	}
}

// DropOrder is the exact reverse of CreateOrder, so dropping never breaks a
// foreign key still in force.
func DropOrder() []TableDef {
	create := CreateOrder()
	drop := make([]TableDef, len(create))
	for i, t := range create {
		drop[len(create)-1-i] = t
	}
	return drop
}

// ByName looks up a catalog relation by name.
func ByName(name string) (TableDef, bool) {
	for _, t := range CreateOrder() {
		if t.Name == name {
			return t, true
		}
	}
	return TableDef{}, false
}
