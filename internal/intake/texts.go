package intake

import "fmt"

// Button labels. The manual-entry label is also matched against incoming
// text, so it must stay identical to what the keyboard sends.
const (
	LabelShareContact = "📞 Поделиться номером"
	LabelManualPhone  = "📝 Ввести номер вручную"
)

// ExperienceOptions are the quick replies offered for the experience field.
var ExperienceOptions = []string{
	"Новичок",
	"Занимался(ась) ранее",
	"Опытный спортсмен",
}

// Texts holds every user-facing message of the intake flow.
type Texts struct {
	Welcome      string
	NameTooShort string
	// PhonePrompt is formatted with the accepted name.
	PhonePrompt      string
	ManualPhone      string
	PhoneInvalid     string
	AgePrompt        string
	AgeNotANumber    string
	AgeOutOfRange    string
	ExperiencePrompt string
	ExperienceEmpty  string
	// Success is formatted with the applicant's name and the organisation.
	Success       string
	PersistFailed string
	Cancelled     string
	Fallback      string
	Org           string
}

// DefaultTexts returns the Russian texts for the given organisation.
// orgAccusative is the organisation name as it reads after "в"; when it is
// empty the greeting names org in the nominative instead.
func DefaultTexts(org, orgAccusative string) Texts {
	greeting := fmt.Sprintf("🤺 Добро пожаловать! Вас приветствует %s!", org)
	if orgAccusative != "" {
		greeting = fmt.Sprintf("🤺 Добро пожаловать в %s!", orgAccusative)
	}

	return Texts{
		Welcome: greeting + "\n\n" +
			"Для записи на тренировку давайте соберем необходимую информацию.\n\n" +
			"📝 Как вас зовут?",
		NameTooShort:     "❌ Имя должно содержать хотя бы 2 символа. Как вас зовут?",
		PhonePrompt:      "Приятно познакомиться, %s! 📞",
		ManualPhone:      "Введите ваш номер телефона:",
		PhoneInvalid:     "❌ Пожалуйста, введите корректный номер телефона:",
		AgePrompt:        "🎯 Сколько вам лет?",
		AgeNotANumber:    "❌ Пожалуйста, введите возраст цифрами:",
		AgeOutOfRange:    "❌ Пожалуйста, укажите реальный возраст (5-70 лет):",
		ExperiencePrompt: "🏅 Есть ли у вас опыт в фехтовании?",
		ExperienceEmpty:  "❌ Пожалуйста, выберите вариант или опишите ваш опыт:",
		Success: "✅ Спасибо, %s! Ваша заявка принята!\n\n" +
			"🏅 %s\n" +
			"📞 Наш менеджер свяжется с вами в течение 24 часов\n\n" +
			"Для новой заявки отправьте /start",
		PersistFailed: "⚠️ Не удалось сохранить заявку. Пожалуйста, отправьте ваш ответ ещё раз чуть позже.",
		Cancelled:     "Диалог отменен. Для начала отправьте /start",
		Fallback:      "Для записи на тренировку отправьте /start",
		Org:           org,
	}
}
