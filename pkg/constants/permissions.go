package constants

// Permission определяет тип для гранулярных разрешений пользователей бота.
type Permission string

const (
	// Право на создание/управление пользователями.
	PermissionManageUsers Permission = "manage_users"
	// Право на установку лимитов на выезды.
	PermissionSetVisitLimits Permission = "set_visit_limits"
	// Право на создание заявок.
	PermissionCreateTickets Permission = "create_tickets"
	// Право на просмотр заявок.
	PermissionViewTickets Permission = "view_tickets"
	// Право на добавление файлов к сделке после выезда.
	PermissionAddFilesFromVisit Permission = "add_files_from_visit"
)

// String возвращает строковое представление разрешения.
func (p Permission) String() string {
	return string(p)
}

// AllPermissions - полный список известных разрешений. Используется при
// валидации команд управления пользователями.
var AllPermissions = []Permission{
	PermissionManageUsers,
	PermissionSetVisitLimits,
	PermissionCreateTickets,
	PermissionViewTickets,
	PermissionAddFilesFromVisit,
}

// IsKnownPermission проверяет, что строка соответствует одному из разрешений.
func IsKnownPermission(value string) bool {
	for _, p := range AllPermissions {
		if p.String() == value {
			return true
		}
	}
	return false
}
