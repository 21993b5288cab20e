package model

// StagedFile представляет принятый файл, ожидающий отправки.
//
// Name служит ключом идентичности в пределах пакета (имена считаются
// уникальными; дубликаты затирают друг друга). Preview — отзываемый
// хэндл превью, выданный registry при стейджинге; живёт без изменений
// до пакетного отзыва.
type StagedFile struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	Preview     string `json:"preview,omitempty"`
}
