package model

// Статусы задачи на бэкенде. Клиент специально обрабатывает только
// переход к StatusCompleted, остальные значения терпимы.
const (
	StatusSubmitted  = "submitted"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Task — задача конвертации, выданная бэкендом.
type Task struct {
	UID      string  `json:"task_uid"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Messages string  `json:"messages,omitempty"`
}

// ResultSet — отображение имени файла в извлеченный текст.
// Заполняется атомарно из одного успешного фетча и целиком заменяет
// предыдущее значение, слияния между фетчами нет.
type ResultSet map[string]string
