package megaplan

import (
	"encoding/json"
	"strings"
	"time"
)

// Имена кастомных полей категории "Выезд" в Мегаплане.
// Фиксированы настройкой конкретного тенанта CRM.
const (
	fieldAddress         = "Category1000076CustomFieldPredmetRabotAdres"
	fieldCadastralNumber = "Category1000076CustomFieldPredmetRabotKadastroviyNomer"
	fieldVisitDateTime   = "Category1000076CustomFieldViezdDataVremyaViezda"
	fieldVisitResult     = "Category1000076CustomFieldViezdRezultatViezda"
	fieldExecutors       = "Category1000076CustomFieldViezdIspolnitel"
	fieldVisitFiles      = "Category1000076CustomFieldViezdFayliDlyaViezda"
	fieldTelegramUserIDs = "Category1000076CustomFieldSluzhebniyTelegramuserid"

	// FieldServiceData - служебное поле с JSON кадастровых объектов.
	FieldServiceData = "Category1000076CustomFieldSluzhebniyServiceData"
	// FieldVisitDocs - документы и фото с выезда.
	FieldVisitDocs = "Category1000076CustomFieldViezdDokumentiIFotoSViezda"
	// FieldAttaches - основное поле вложений сделки.
	FieldAttaches = "attaches"
)

// Статус "Работа над процессом прекращена": такие сделки исключаются из выборок.
const cancelledStatusID = 202

// Employee - сотрудник/исполнитель. Пустое Name означает stub-запись:
// CRM возвращает полные данные сотрудника только при первом вхождении
// в ответе, дальше - только id.
type Employee struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Position string `json:"position,omitempty"`
}

// IsStub сообщает, что запись содержит только идентификатор.
func (e Employee) IsStub() bool {
	return e.Name == ""
}

// FileInfo - прикрепленный к сделке файл.
type FileInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Extension string `json:"extension,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Path      string `json:"path,omitempty"`
}

// Money - денежная сумма.
type Money struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// StateInfo - статус сделки.
type StateInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}

// ProgramInfo - программа (схема), по которой ведется сделка.
type ProgramInfo struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ContactInfo - контакт клиента (телефон, email).
type ContactInfo struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Contractor - клиент/контрагент по сделке.
type Contractor struct {
	ID          string        `json:"id"`
	FirstName   string        `json:"firstName"`
	LastName    string        `json:"lastName"`
	MiddleName  string        `json:"middleName,omitempty"`
	ContactInfo []ContactInfo `json:"contactInfo,omitempty"`
}

// FullName собирает полное имя контрагента.
func (c Contractor) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{c.LastName, c.FirstName, c.MiddleName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// DateTimeValue - дата-время из CRM. Приходит либо как объект
// {"contentType":"DateTime","value":"..."}, либо как строка ISO 8601.
type DateTimeValue struct {
	time.Time
}

func (d *DateTimeValue) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Value != "" {
		parsed, err := time.Parse(time.RFC3339, wrapped.Value)
		if err != nil {
			return err
		}
		d.Time = parsed
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return err
	}
	d.Time = parsed
	return nil
}

func (d DateTimeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"contentType": "DateTime",
		"value":       d.Time.Format(time.RFC3339),
	})
}

// TelegramIDList - список telegram id, привязанных к сделке. В CRM поле
// хранится как список ссылок на сотрудников; наружу отдаем только id.
type TelegramIDList []string

func (l *TelegramIDList) UnmarshalJSON(data []byte) error {
	var refs []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &refs); err != nil {
		return err
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.ID != "" {
			ids = append(ids, ref.ID)
		}
	}
	*l = ids
	return nil
}

// Deal - сделка (заявка на выезд) из Мегаплана. DTO живет в пределах одного
// ответа API; между вызовами ничего не кэшируется, кроме непрозрачного
// ServiceData, который возвращается в CRM как есть.
type Deal struct {
	ID          string      `json:"id" validate:"required"`
	Name        string      `json:"name" validate:"required"`
	Number      string      `json:"number"`
	Description string      `json:"description,omitempty"`
	Price       *Money      `json:"price,omitempty"`
	Program     ProgramInfo `json:"program"`
	State       StateInfo   `json:"state"`
	Contractor  *Contractor `json:"contractor,omitempty"`

	Address         string          `json:"Category1000076CustomFieldPredmetRabotAdres,omitempty"`
	CadastralNumber string          `json:"Category1000076CustomFieldPredmetRabotKadastroviyNomer,omitempty"`
	VisitDateTime   *DateTimeValue  `json:"Category1000076CustomFieldViezdDataVremyaViezda,omitempty"`
	VisitResult     string          `json:"Category1000076CustomFieldViezdRezultatViezda,omitempty"`
	Executors       []Employee      `json:"Category1000076CustomFieldViezdIspolnitel,omitempty"`
	VisitFiles      []FileInfo      `json:"Category1000076CustomFieldViezdFayliDlyaViezda,omitempty"`
	VisitDocs       []FileInfo      `json:"Category1000076CustomFieldViezdDokumentiIFotoSViezda,omitempty"`
	Attaches        []FileInfo      `json:"attaches,omitempty"`
	TelegramUserIDs TelegramIDList  `json:"Category1000076CustomFieldSluzhebniyTelegramuserid,omitempty"`
	ServiceData     json.RawMessage `json:"Category1000076CustomFieldSluzhebniyServiceData,omitempty"`
}

// DealDraft - данные для создания новой сделки. Поля-указатели и пустые
// строки означают "не передавать поле в CRM".
type DealDraft struct {
	Name           string
	Description    string
	ManagerID      int64
	VisitDateTime  *time.Time
	MegaplanUserID int64
	Cadastral      string
	Address        string
}

// DealFilter - параметры выборки сделок. Для выборки за один день
// заполняется VisitDate, за период - пара VisitDateFrom/VisitDateTo
// (включительно); период имеет приоритет.
type DealFilter struct {
	VisitDate     *time.Time
	VisitDateFrom *time.Time
	VisitDateTo   *time.Time
	ExecutorID    string
	Limit         int
}
