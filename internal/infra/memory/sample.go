package memory

import (
	"fmt"

	"trivia-engine/internal/domain"
)

type sampleQuestion struct {
	en, sk  string
	options [4]string
	correct string
}

type sampleTopic struct {
	id, en, sk string
	questions  []sampleQuestion
}

// sampleTopics is a small bilingual catalog, enough for a full daily pack plus rotation.
var sampleTopics = []sampleTopic{
	{"geography", "Geography", "Geografia", []sampleQuestion{
		{"What is the capital of Slovakia?", "Aké je hlavné mesto Slovenska?", [4]string{"Košice", "Bratislava", "Žilina", "Nitra"}, "B"},
		{"Which is the longest river in Europe?", "Ktorá je najdlhšia rieka Európy?", [4]string{"Danube", "Rhine", "Volga", "Dnieper"}, "C"},
		{"Which ocean is the largest?", "Ktorý oceán je najväčší?", [4]string{"Pacific", "Atlantic", "Indian", "Arctic"}, "A"},
	}},
	{"history", "History", "História", []sampleQuestion{
		{"In which year did the Berlin Wall fall?", "V ktorom roku padol Berlínsky múr?", [4]string{"1987", "1991", "1985", "1989"}, "D"},
		{"Who was the first emperor of Rome?", "Kto bol prvým rímskym cisárom?", [4]string{"Augustus", "Nero", "Caesar", "Trajan"}, "A"},
		{"When was Slovakia established as an independent state?", "Kedy vznikla samostatná Slovenská republika?", [4]string{"1989", "1993", "2004", "1968"}, "B"},
	}},
	{"science", "Science", "Veda", []sampleQuestion{
		{"What is the chemical symbol of gold?", "Aká je chemická značka zlata?", [4]string{"Ag", "Gd", "Au", "Go"}, "C"},
		{"How many planets are in the Solar System?", "Koľko planét má Slnečná sústava?", [4]string{"7", "8", "9", "10"}, "B"},
		{"What gas do plants absorb?", "Aký plyn pohlcujú rastliny?", [4]string{"Oxygen", "Nitrogen", "Helium", "Carbon dioxide"}, "D"},
	}},
	{"sports", "Sports", "Šport", []sampleQuestion{
		{"How many players does a football team field?", "Koľko hráčov má futbalový tím na ihrisku?", [4]string{"11", "10", "9", "12"}, "A"},
		{"Which country hosted the 2016 Summer Olympics?", "Ktorá krajina hostila letné olympijské hry 2016?", [4]string{"China", "UK", "Brazil", "Japan"}, "C"},
		{"In which sport is a shuttlecock used?", "V ktorom športe sa používa košík?", [4]string{"Tennis", "Badminton", "Squash", "Golf"}, "B"},
	}},
	{"music", "Music", "Hudba", []sampleQuestion{
		{"How many strings does a standard guitar have?", "Koľko strún má klasická gitara?", [4]string{"4", "5", "6", "7"}, "C"},
		{"Who composed the Moonlight Sonata?", "Kto skomponoval Mesačnú sonátu?", [4]string{"Mozart", "Beethoven", "Bach", "Chopin"}, "B"},
		{"Which band released Abbey Road?", "Ktorá skupina vydala album Abbey Road?", [4]string{"The Beatles", "Queen", "ABBA", "The Rolling Stones"}, "A"},
	}},
	{"film", "Film", "Film", []sampleQuestion{
		{"Who directed Jurassic Park?", "Kto režíroval Jurský park?", [4]string{"James Cameron", "George Lucas", "Ridley Scott", "Steven Spielberg"}, "D"},
		{"Which film won the first Academy Award for Best Picture?", "Ktorý film získal prvého Oscara za najlepší film?", [4]string{"Wings", "Casablanca", "Metropolis", "Sunrise"}, "A"},
		{"In which city is the film Casablanca set?", "V ktorom meste sa odohráva film Casablanca?", [4]string{"Cairo", "Tunis", "Casablanca", "Algiers"}, "C"},
	}},
	{"literature", "Literature", "Literatúra", []sampleQuestion{
		{"Who wrote 1984?", "Kto napísal román 1984?", [4]string{"Aldous Huxley", "George Orwell", "Ray Bradbury", "H. G. Wells"}, "B"},
		{"Who wrote Hamlet?", "Kto napísal Hamleta?", [4]string{"William Shakespeare", "Christopher Marlowe", "Ben Jonson", "John Milton"}, "A"},
		{"Which language was Don Quixote written in?", "V akom jazyku bol napísaný Don Quijote?", [4]string{"Italian", "Portuguese", "Latin", "Spanish"}, "D"},
	}},
	{"food", "Food", "Jedlo", []sampleQuestion{
		{"What is the main ingredient of guacamole?", "Aká je hlavná surovina guacamole?", [4]string{"Tomato", "Avocado", "Pepper", "Onion"}, "B"},
		{"Which country is the origin of sushi?", "Z ktorej krajiny pochádza sushi?", [4]string{"China", "Korea", "Japan", "Thailand"}, "C"},
		{"Bryndzové halušky are made with which cheese?", "S akým syrom sa robia bryndzové halušky?", [4]string{"Bryndza", "Cheddar", "Feta", "Gouda"}, "A"},
	}},
	{"animals", "Animals", "Zvieratá", []sampleQuestion{
		{"What is the largest mammal?", "Ktorý cicavec je najväčší?", [4]string{"Elephant", "Giraffe", "Orca", "Blue whale"}, "D"},
		{"How many legs does a spider have?", "Koľko nôh má pavúk?", [4]string{"6", "8", "10", "12"}, "B"},
		{"Which bird is a symbol of peace?", "Ktorý vták je symbolom mieru?", [4]string{"Dove", "Eagle", "Owl", "Swan"}, "A"},
	}},
	{"technology", "Technology", "Technológie", []sampleQuestion{
		{"What does CPU stand for?", "Čo znamená skratka CPU?", [4]string{"Central Process Unit", "Computer Personal Unit", "Central Processing Unit", "Core Processing Unit"}, "C"},
		{"Which company created the Go programming language?", "Ktorá spoločnosť vytvorila jazyk Go?", [4]string{"Google", "Microsoft", "Apple", "Mozilla"}, "A"},
		{"What does HTTP stand for?", "Čo znamená skratka HTTP?", [4]string{"HyperText Transfer Protocol", "High Transfer Text Protocol", "Host Text Transport Protocol", "Hyper Transport Text Process"}, "A"},
	}},
	{"art", "Art", "Umenie", []sampleQuestion{
		{"Who painted the Mona Lisa?", "Kto namaľoval Monu Lízu?", [4]string{"Michelangelo", "Raphael", "Leonardo da Vinci", "Donatello"}, "C"},
		{"Andy Warhol was born to parents from which country?", "Z ktorej krajiny pochádzali rodičia Andyho Warhola?", [4]string{"Poland", "Slovakia", "Hungary", "Austria"}, "B"},
		{"Which art movement is Salvador Dalí associated with?", "S ktorým umeleckým smerom sa spája Salvador Dalí?", [4]string{"Cubism", "Impressionism", "Baroque", "Surrealism"}, "D"},
	}},
	{"space", "Space", "Vesmír", []sampleQuestion{
		{"Which planet is known as the Red Planet?", "Ktorá planéta sa nazýva Červená planéta?", [4]string{"Venus", "Mars", "Jupiter", "Mercury"}, "B"},
		{"Who was the first human in space?", "Kto bol prvým človekom vo vesmíre?", [4]string{"Yuri Gagarin", "Neil Armstrong", "Alan Shepard", "John Glenn"}, "A"},
		{"What is the closest star to Earth?", "Ktorá hviezda je najbližšie k Zemi?", [4]string{"Sirius", "Proxima Centauri", "Polaris", "The Sun"}, "D"},
	}},
	{"languages", "Languages", "Jazyky", []sampleQuestion{
		{"How many letters does the English alphabet have?", "Koľko písmen má anglická abeceda?", [4]string{"24", "25", "26", "27"}, "C"},
		{"Which language has the most native speakers?", "Ktorý jazyk má najviac rodených hovoriacich?", [4]string{"Mandarin Chinese", "English", "Spanish", "Hindi"}, "A"},
		{"What does 'ahoj' mean in English?", "Čo znamená slovo 'ahoj' po anglicky?", [4]string{"Goodbye only", "Thanks", "Hello", "Please"}, "C"},
	}},
	{"nature", "Nature", "Príroda", []sampleQuestion{
		{"What is the highest peak of the Tatras?", "Ktorý je najvyšší štít Tatier?", [4]string{"Kriváň", "Lomnický štít", "Rysy", "Gerlachovský štít"}, "D"},
		{"Which tree produces acorns?", "Ktorý strom rodí žalude?", [4]string{"Oak", "Beech", "Pine", "Birch"}, "A"},
		{"What is the largest desert on Earth?", "Ktorá púšť je na Zemi najväčšia?", [4]string{"Sahara", "Antarctic", "Gobi", "Kalahari"}, "B"},
	}},
}

// SampleContent returns the bundled bilingual topics and questions.
func SampleContent() ([]domain.Topic, []domain.Question) {
	topics := make([]domain.Topic, 0, len(sampleTopics))
	questions := make([]domain.Question, 0, len(sampleTopics)*3)
	for _, st := range sampleTopics {
		topics = append(topics, domain.Topic{
			ID:     st.id,
			Name:   domain.Localized{domain.LangEN: st.en, domain.LangSK: st.sk},
			Active: true,
		})
		for i, sq := range st.questions {
			options := make([]domain.Option, 0, len(domain.OptionKeys))
			for j, key := range domain.OptionKeys {
				options = append(options, domain.Option{Key: key, Label: domain.Localized{domain.LangEN: sq.options[j]}})
			}
			questions = append(questions, domain.Question{
				ID:         fmt.Sprintf("%s-%d", st.id, i+1),
				TopicID:    st.id,
				Text:       domain.Localized{domain.LangEN: sq.en, domain.LangSK: sq.sk},
				Options:    options,
				CorrectKey: sq.correct,
				Active:     true,
			})
		}
	}
	return topics, questions
}

// NewSampleContentPool builds a static pool from SampleContent.
func NewSampleContentPool() *StaticContentPool {
	topics, questions := SampleContent()
	pool, err := NewStaticContentPool(topics, questions)
	if err != nil {
		panic(err)
	}
	return pool
}
