package domain

import "strings"

// TopicCategory groups related practice topics.
type TopicCategory struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Icon   string   `json:"icon"`
	Topics []string `json:"topics"`
}

// TopicCategories is the static topic catalog.
var TopicCategories = []TopicCategory{
	{
		ID:   "quantitative",
		Name: "Quantitative Aptitude",
		Icon: "🔢",
		Topics: []string{
			"Percentages", "Ratio and Proportion", "Profit and Loss", "Simple Interest",
			"Compound Interest", "Time and Work", "Pipes and Cisterns", "Time Speed and Distance",
			"Trains", "Boats and Streams", "Averages", "Problems on Ages", "Problems on Numbers",
			"HCF and LCM", "Permutation and Combination", "Probability", "Mixtures and Alligations",
			"Partnership", "Height and Distance", "Area and Volume", "Chain Rule", "Races and Games",
			"Clocks", "Calendar", "Banker Discount", "True Discount", "Stocks and Shares",
			"Surds and Indices", "Logarithms", "Simplification", "Square Root and Cube Root",
			"Decimal Fractions", "Odd Man Out and Series",
		},
	},
	{
		ID:   "logical",
		Name: "Logical Reasoning",
		Icon: "🧩",
		Topics: []string{
			"Number Series", "Analogies", "Puzzles", "Seating Arrangements", "Blood Relations",
			"Coding Decoding", "Syllogisms", "Direction Sense Test", "Ranking and Order",
			"Data Sufficiency", "Statement and Argument", "Statement and Assumption",
			"Statement and Conclusion", "Cause and Effect", "Letter and Symbol Series",
			"Logical Problems", "Classification", "Making Judgments",
		},
	},
	{
		ID:   "verbal",
		Name: "Verbal Ability",
		Icon: "📝",
		Topics: []string{
			"Synonyms", "Antonyms", "Ordering of Words", "Ordering of Sentences", "Sentence Formation",
			"Sentence Completion", "Sentence Correction", "Sentence Improvement", "Spotting Errors",
			"Passage Correction", "Substitution", "Active and Passive Voice",
			"Direct and Indirect Speech", "Para Jumbles", "Fill in the Blanks", "Idioms and Phrases",
			"One Word Substitution", "Spellings", "Reading Comprehension", "Verbal Analogies",
		},
	},
	{
		ID:     "data",
		Name:   "Data Interpretation",
		Icon:   "📊",
		Topics: []string{"Bar Charts", "Pie Charts", "Line Charts", "Tables", "Caselets", "Mixed DI"},
	},
	{
		ID:   "nonverbal",
		Name: "Non Verbal Reasoning",
		Icon: "🎯",
		Topics: []string{
			"Series Completion", "Analogy", "Classification", "Mirror Images", "Water Images",
			"Embedded Figures", "Pattern Completion", "Figure Matrix", "Paper Folding",
			"Paper Cutting", "Rule Detection", "Grouping of Images", "Dot Situation",
			"Figure Formation", "Cubes and Dice",
		},
	},
}

// LookupTopic finds a catalog topic by case-insensitive name and returns its canonical spelling.
func LookupTopic(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, cat := range TopicCategories {
		for _, t := range cat.Topics {
			if strings.EqualFold(t, name) {
				return t, true
			}
		}
	}
	return "", false
}
