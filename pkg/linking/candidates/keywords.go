package candidates

// ContextKeyword maps a notes keyword to the concept words it implies.
// Keywords are matched as plain substrings, so CJK terms work without
// tokenisation.
type ContextKeyword struct {
	Keyword  string
	Concepts []string
}

// DefaultContextKeywords is the keyword table used when a Generator is
// built without one. Order matters: concepts are collected in table order
// and only the first few distinct ones are used.
var DefaultContextKeywords = []ContextKeyword{
	{"画", []string{"painting", "drawing", "art"}},
	{"肖像", []string{"portrait"}},
	{"雕塑", []string{"sculpture", "statue"}},
	{"教堂", []string{"church", "basilica", "cathedral"}},
	{"宫殿", []string{"palace"}},
	{"家族", []string{"family", "house of"}},
	{"广场", []string{"square", "piazza"}},
	{"剧院", []string{"theatre", "opera house"}},
	{"博物馆", []string{"museum", "gallery"}},
	{"大学", []string{"university", "college"}},
	{"别墅", []string{"villa"}},
	{"花园", []string{"garden", "park"}},
	{"人", []string{"person", "human"}},
	{"画家", []string{"painter", "artist"}},
	{"作家", []string{"writer", "author"}},
	{"皇帝", []string{"emperor"}},
	{"教皇", []string{"pope"}},
	{"神话", []string{"mythology", "god", "goddess"}},
	{"别名", []string{"alias", "known as"}},
	{"又名", []string{"alias", "known as"}},
	{"指", []string{"refers to"}},
	{"即", []string{"is", "same as"}},
	{"church", []string{"church"}},
	{"cathedral", []string{"cathedral"}},
	{"palace", []string{"palace"}},
	{"villa", []string{"villa"}},
	{"museum", []string{"museum"}},
	{"theatre", []string{"theatre"}},
	{"sculpture", []string{"sculpture"}},
}

// DefaultNoteStopwords are notes fragments that are editorial markers,
// never entity names.
var DefaultNoteStopwords = []string{
	"validation",
	"disambiguation",
	"category fix",
	"ocr fix",
}

// DefaultConnectors are the connective phrases a name is segmented on,
// in the order they are tried.
var DefaultConnectors = []string{
	"with",
	"and",
	"after",
	"attributed to",
	"circle of",
	"follower of",
	"studio of",
	"school of",
	"by",
	"formerly",
}
