package engine

import (
	"fmt"

	"trivia-arena/internal/domain"
)

// BackupBatchSize is the number of questions substituted when content generation fails.
const BackupBatchSize = 5

// BackupDifficulty tags every substituted question.
const BackupDifficulty = domain.DifficultyRookie

// BuiltinBatch is the last-resort question set compiled into the binary.
func BuiltinBatch() []domain.Question {
	return []domain.Question{
		{ID: "builtin-1", Text: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Mars", "Jupiter", "Mercury"}, CorrectOptionIndex: 1, Category: "Science", Explanation: "Iron oxide on its surface gives Mars its reddish color."},
		{ID: "builtin-2", Text: "What is the largest ocean on Earth?", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, CorrectOptionIndex: 3, Category: "Geography", Explanation: "The Pacific covers roughly a third of the planet's surface."},
		{ID: "builtin-3", Text: "Who wrote 'Romeo and Juliet'?", Options: []string{"William Shakespeare", "Charles Dickens", "Jane Austen", "Mark Twain"}, CorrectOptionIndex: 0, Category: "Literature", Explanation: "Shakespeare wrote the play in the 1590s."},
		{ID: "builtin-4", Text: "How many sides does a hexagon have?", Options: []string{"Five", "Six", "Seven", "Eight"}, CorrectOptionIndex: 1, Category: "Math", Explanation: "'Hex' comes from the Greek word for six."},
		{ID: "builtin-5", Text: "In which year did the first human land on the Moon?", Options: []string{"1965", "1969", "1972", "1961"}, CorrectOptionIndex: 1, Category: "History", Explanation: "Apollo 11 landed on July 20, 1969."},
		{ID: "builtin-6", Text: "What is the chemical symbol for gold?", Options: []string{"Ag", "Gd", "Au", "Go"}, CorrectOptionIndex: 2, Category: "Science", Explanation: "Au comes from the Latin 'aurum'."},
		{ID: "builtin-7", Text: "Which instrument has 88 keys?", Options: []string{"Organ", "Accordion", "Harpsichord", "Piano"}, CorrectOptionIndex: 3, Category: "Music", Explanation: "A standard modern piano has 52 white and 36 black keys."},
		{ID: "builtin-8", Text: "What is the capital of Canada?", Options: []string{"Toronto", "Ottawa", "Vancouver", "Montreal"}, CorrectOptionIndex: 1, Category: "Geography", Explanation: "Ottawa was chosen as the capital in 1857."},
	}
}

// prepareBackup trims a backup batch to the fixed size, tags it with the default
// difficulty and suffixes ids so repeated substitutions stay unique in a session.
func prepareBackup(batch []domain.Question, seq int) []domain.Question {
	if len(batch) > BackupBatchSize {
		batch = batch[:BackupBatchSize]
	}
	out := make([]domain.Question, 0, len(batch))
	for _, q := range batch {
		q.Options = append([]string(nil), q.Options...)
		q.DifficultyTag = BackupDifficulty
		q.ID = fmt.Sprintf("%s#%d", q.ID, seq)
		out = append(out, q)
	}
	return out
}
