package models

// DefaultTitle is the heading printed on every generated paper
const DefaultTitle = "Model Question Paper"

// TopicCount is the number of topics inferred per run
const TopicCount = 5

// OriginalQuestion represents a question found in the source papers
type OriginalQuestion struct {
	Text     string   `json:"text"`
	Entities []string `json:"entities"`
	POSTags  []string `json:"pos_tags"`
}

// TopicTerm is a single weighted keyword of a topic
type TopicTerm struct {
	Word   string  `json:"word"`
	Weight float64 `json:"weight"`
}

// Topic represents an inferred topic.
// Text holds the rendered `0.034*"word" + ...` form consumed by the ranking stage.
type Topic struct {
	ID    int         `json:"id"`
	Terms []TopicTerm `json:"terms"`
	Text  string      `json:"text"`
}

// QuestionPaper is the final render input
type QuestionPaper struct {
	Title     string   `json:"title"`
	Questions []string `json:"questions"`
}

// Variant selects how prompts are built and how candidates are filtered and ranked
type Variant struct {
	Name                    string `json:"name"`
	ContextWindowSize       int    `json:"context_window_size"`
	RotateContext           bool   `json:"rotate_context"`
	UseStyleExemplar        bool   `json:"use_style_exemplar"`
	MinWordCount            int    `json:"min_word_count"`
	EnableSimilarityRanking bool   `json:"enable_similarity_ranking"`
	EnableTopicDiversity    bool   `json:"enable_topic_diversity"`
	OutputFile              string `json:"output_file"`
}

// SimpleVariant mirrors the first generation of the pipeline:
// rotating context window, no exemplar, short-question filter and truncation.
func SimpleVariant() Variant {
	return Variant{
		Name:              "simple",
		ContextWindowSize: 200,
		RotateContext:     true,
		MinWordCount:      5,
		OutputFile:        "localmodelpaperStyledPhi3.pdf",
	}
}

// ImprovedVariant adds a style exemplar, similarity ranking and topic coverage
func ImprovedVariant() Variant {
	return Variant{
		Name:                    "improved",
		ContextWindowSize:       500,
		UseStyleExemplar:        true,
		MinWordCount:            10,
		EnableSimilarityRanking: true,
		EnableTopicDiversity:    true,
		OutputFile:              "improved_model_paper.pdf",
	}
}

// VariantByName returns the preset with the given name
func VariantByName(name string) (Variant, bool) {
	switch name {
	case "simple":
		return SimpleVariant(), true
	case "improved", "":
		return ImprovedVariant(), true
	default:
		return Variant{}, false
	}
}

// Result represents the outcome of a full pipeline run
type Result struct {
	Paper      QuestionPaper      `json:"paper"`
	Text       string             `json:"text"`
	Originals  []OriginalQuestion `json:"originals"`
	Topics     []Topic            `json:"topics"`
	Sentences  int                `json:"sentences"`
	Candidates []string           `json:"candidates"`
	Requested  int                `json:"requested"`
	OutputPath string             `json:"output_path,omitempty"`
	PageCount  int                `json:"page_count,omitempty"`
}
