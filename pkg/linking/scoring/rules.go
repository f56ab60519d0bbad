package scoring

import "github.com/otherjamesbrown/qidlink/pkg/linking"

// CategoryRule lists description keywords that confirm or contradict a
// category hint.
type CategoryRule struct {
	Positive []string
	Negative []string
}

// DefaultCategoryRules is the category consistency table.
var DefaultCategoryRules = map[linking.Category]CategoryRule{
	linking.CategoryPerson: {
		Positive: []string{"human", "person", "painter", "artist", "man", "woman", "citizen"},
		Negative: []string{"painting", "book", "city", "street"},
	},
	linking.CategoryWork: {
		Positive: []string{"painting", "drawing", "sculpture", "book", "novel", "film", "work of art", "creative work", "series", "literary work"},
		Negative: []string{"human", "person", "city"},
	},
	linking.CategoryPlace: {
		Positive: []string{"city", "country", "mountain", "river", "building", "museum", "place", "location", "capital", "architectural structure"},
		Negative: []string{"human", "painting"},
	},
	linking.CategoryOrganization: {
		Positive: []string{"museum", "university", "organization", "company", "business", "group"},
		Negative: []string{"human", "painting"},
	},
	linking.CategoryEvent: {
		Positive: []string{"war", "battle", "event", "election"},
		Negative: []string{"human", "city"},
	},
	linking.CategoryConcept: {
		Positive: []string{"concept", "idea", "genre", "style"},
		Negative: []string{"human"},
	},
}
