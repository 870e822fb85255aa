package risk

// QuestionnaireVersion identifies the question table below. Stored alongside
// every computed score so re-assessments against a newer table are detectable.
const QuestionnaireVersion = "2024-06"

// Option is one selectable answer with its pre-assigned point value.
type Option struct {
	ID     string
	Label  string
	Points int
}

// Question is one required questionnaire entry.
type Question struct {
	ID      string
	Prompt  string
	Options []Option
}

// MaxPoints returns the highest attainable points for the question.
func (q Question) MaxPoints() int {
	max := 0
	for _, o := range q.Options {
		if o.Points > max {
			max = o.Points
		}
	}
	return max
}

// Questions is the static table behind the risk questionnaire. Every question
// is required and carries fixed point values; changing anything here requires
// bumping QuestionnaireVersion.
var Questions = []Question{
	{
		ID:     "age_bracket",
		Prompt: "What is your age bracket?",
		Options: []Option{
			{ID: "over_60", Label: "Over 60", Points: 0},
			{ID: "46_60", Label: "46-60", Points: 5},
			{ID: "36_45", Label: "36-45", Points: 10},
			{ID: "26_35", Label: "26-35", Points: 15},
			{ID: "18_25", Label: "18-25", Points: 20},
		},
	},
	{
		ID:     "income_bracket",
		Prompt: "What is your annual income bracket?",
		Options: []Option{
			{ID: "under_25k", Label: "Under $25k", Points: 0},
			{ID: "25k_50k", Label: "$25k-$50k", Points: 5},
			{ID: "50k_100k", Label: "$50k-$100k", Points: 10},
			{ID: "100k_250k", Label: "$100k-$250k", Points: 15},
			{ID: "over_250k", Label: "Over $250k", Points: 20},
		},
	},
	{
		ID:     "expense_ratio",
		Prompt: "How much of your income goes to fixed expenses?",
		Options: []Option{
			{ID: "over_80", Label: "Over 80%", Points: 0},
			{ID: "60_80", Label: "60-80%", Points: 5},
			{ID: "40_60", Label: "40-60%", Points: 10},
			{ID: "20_40", Label: "20-40%", Points: 15},
			{ID: "under_20", Label: "Under 20%", Points: 20},
		},
	},
	{
		ID:     "financial_goal",
		Prompt: "What is your primary goal for this portfolio?",
		Options: []Option{
			{ID: "preserve", Label: "Preserve capital", Points: 0},
			{ID: "income", Label: "Steady income", Points: 10},
			{ID: "growth", Label: "Maximize growth", Points: 20},
		},
	},
	{
		ID:     "risk_tolerance",
		Prompt: "Your portfolio drops 20% in a month. What do you do?",
		Options: []Option{
			{ID: "sell_all", Label: "Sell everything", Points: 0},
			{ID: "sell_some", Label: "Sell some positions", Points: 5},
			{ID: "hold", Label: "Hold and wait", Points: 10},
			{ID: "buy_some", Label: "Buy a little more", Points: 15},
			{ID: "buy_more", Label: "Buy the dip aggressively", Points: 20},
		},
	},
	{
		ID:     "defi_experience",
		Prompt: "How much experience do you have with DeFi protocols?",
		Options: []Option{
			{ID: "none", Label: "None", Points: 0},
			{ID: "basic", Label: "Held tokens, used a swap", Points: 10},
			{ID: "advanced", Label: "Provided liquidity, farmed yield", Points: 20},
		},
	},
}

// questionByID builds a lookup of the static table, keyed by question ID.
func questionByID() map[string]Question {
	byID := make(map[string]Question, len(Questions))
	for _, q := range Questions {
		byID[q.ID] = q
	}
	return byID
}
