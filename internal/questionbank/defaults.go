package questionbank

import (
	"github.com/google/uuid"
	"github.com/quizroom/quizroom-backend/internal/model"
)

// DefaultQuestions returns the built-in fallback set, filtered by difficulty
// unless difficulty is "any" or empty. The set exists so a session can always
// be created even when the bank is empty or unreachable.
func DefaultQuestions(difficulty string) []model.Question {
	if difficulty == "" || difficulty == model.DifficultyAny {
		return append([]model.Question(nil), defaultSet...)
	}
	var out []model.Question
	for _, q := range defaultSet {
		if q.Difficulty == difficulty {
			out = append(out, q)
		}
	}
	return out
}

var defaultSet = []model.Question{
	builtin("General", model.DifficultyEasy,
		"Which planet is known as the Red Planet?",
		[]string{"Venus", "Mars", "Jupiter", "Mercury"}, 1),
	builtin("General", model.DifficultyEasy,
		"How many continents are there on Earth?",
		[]string{"Five", "Six", "Seven", "Eight"}, 2),
	builtin("General", model.DifficultyEasy,
		"What is the largest ocean on Earth?",
		[]string{"Atlantic", "Indian", "Arctic", "Pacific"}, 3),
	builtin("Science", model.DifficultyEasy,
		"What gas do plants absorb from the atmosphere?",
		[]string{"Oxygen", "Nitrogen", "Carbon dioxide", "Hydrogen"}, 2),
	builtin("Science", model.DifficultyMedium,
		"What is the chemical symbol for gold?",
		[]string{"Go", "Gd", "Au", "Ag"}, 2),
	builtin("Science", model.DifficultyMedium,
		"Which particle carries a negative electric charge?",
		[]string{"Proton", "Neutron", "Electron", "Photon"}, 2),
	builtin("History", model.DifficultyMedium,
		"In which year did the Berlin Wall fall?",
		[]string{"1987", "1989", "1991", "1993"}, 1),
	builtin("History", model.DifficultyMedium,
		"Who was the first person to walk on the Moon?",
		[]string{"Buzz Aldrin", "Yuri Gagarin", "Neil Armstrong", "John Glenn"}, 2),
	builtin("Geography", model.DifficultyMedium,
		"What is the capital of Canada?",
		[]string{"Toronto", "Vancouver", "Montreal", "Ottawa"}, 3),
	builtin("Geography", model.DifficultyHard,
		"Which country has the most time zones, including territories?",
		[]string{"Russia", "United States", "France", "China"}, 2),
	builtin("Science", model.DifficultyHard,
		"What is the approximate speed of light in a vacuum?",
		[]string{"300,000 km/s", "150,000 km/s", "1,000,000 km/s", "30,000 km/s"}, 0),
	builtin("History", model.DifficultyHard,
		"Which empire was ruled by Ashoka the Great?",
		[]string{"Gupta", "Maurya", "Mughal", "Chola"}, 1),
}

func builtin(category, difficulty, text string, choices []string, correct int) model.Question {
	return model.Question{
		ID:           uuid.New(),
		Category:     category,
		Difficulty:   difficulty,
		Text:         text,
		Choices:      choices,
		CorrectIndex: correct,
		// Zero limit/points defer to the session settings.
	}
}
