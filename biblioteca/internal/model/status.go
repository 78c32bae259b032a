package model

import "fmt"

// Status catalogs are stored as rows (id + unique name) and referenced by
// foreign key. In code they are closed enumerations keyed by the seeded ids;
// CatalogRow lets the startup check compare the seeds against these sets.
type CatalogRow struct {
	ID   int    `db:"id"`
	Name string `db:"nombre"`
}

type LoanStatus int

const (
	LoanActive   LoanStatus = 1 // ACTIVO
	LoanReturned LoanStatus = 2 // DEVUELTO
	LoanOverdue  LoanStatus = 3 // ATRASADO
)

var loanStatusNames = map[LoanStatus]string{
	LoanActive:   "ACTIVO",
	LoanReturned: "DEVUELTO",
	LoanOverdue:  "ATRASADO",
}

func (s LoanStatus) String() string {
	if name, ok := loanStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("LoanStatus(%d)", int(s))
}

func (s LoanStatus) Terminal() bool {
	return s == LoanReturned
}

// Outstanding reports whether the loan still holds a copy.
func (s LoanStatus) Outstanding() bool {
	return s == LoanActive || s == LoanOverdue
}

type ReservationStatus int

const (
	ReservationPending   ReservationStatus = 1 // PENDIENTE
	ReservationFulfilled ReservationStatus = 2 // CUMPLIDA
	ReservationCancelled ReservationStatus = 3 // CANCELADA
	ReservationExpired   ReservationStatus = 4 // EXPIRADA
)

var reservationStatusNames = map[ReservationStatus]string{
	ReservationPending:   "PENDIENTE",
	ReservationFulfilled: "CUMPLIDA",
	ReservationCancelled: "CANCELADA",
	ReservationExpired:   "EXPIRADA",
}

func (s ReservationStatus) String() string {
	if name, ok := reservationStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ReservationStatus(%d)", int(s))
}

func (s ReservationStatus) Terminal() bool {
	return s != ReservationPending
}

type UserType int

const (
	UserStudent   UserType = 1 // ESTUDIANTE
	UserProfessor UserType = 2 // PROFESOR
	UserAdmin     UserType = 3 // ADMINISTRADOR
)

var userTypeNames = map[UserType]string{
	UserStudent:   "ESTUDIANTE",
	UserProfessor: "PROFESOR",
	UserAdmin:     "ADMINISTRADOR",
}

func (t UserType) String() string {
	if name, ok := userTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UserType(%d)", int(t))
}

func (t UserType) Valid() bool {
	_, ok := userTypeNames[t]
	return ok
}

type UserStatus int

const (
	UserActive  UserStatus = 1 // ACTIVO
	UserBlocked UserStatus = 2 // BLOQUEADO
	UserDormant UserStatus = 3 // INACTIVO
)

var userStatusNames = map[UserStatus]string{
	UserActive:  "ACTIVO",
	UserBlocked: "BLOQUEADO",
	UserDormant: "INACTIVO",
}

func (s UserStatus) String() string {
	if name, ok := userStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UserStatus(%d)", int(s))
}

func (s UserStatus) Valid() bool {
	_, ok := userStatusNames[s]
	return ok
}

// Statuses are stored by stable catalog id and exposed over the API by
// catalog name.

func (s LoanStatus) MarshalJSON() ([]byte, error) {
	return marshalCatalogName(loanStatusNames[s], int(s))
}

func (s *LoanStatus) UnmarshalJSON(data []byte) error {
	id, err := unmarshalCatalogName(data, loanStatusNames)
	*s = LoanStatus(id)
	return err
}

func (s ReservationStatus) MarshalJSON() ([]byte, error) {
	return marshalCatalogName(reservationStatusNames[s], int(s))
}

func (s *ReservationStatus) UnmarshalJSON(data []byte) error {
	id, err := unmarshalCatalogName(data, reservationStatusNames)
	*s = ReservationStatus(id)
	return err
}

func (t UserType) MarshalJSON() ([]byte, error) {
	return marshalCatalogName(userTypeNames[t], int(t))
}

func (t *UserType) UnmarshalJSON(data []byte) error {
	id, err := unmarshalCatalogName(data, userTypeNames)
	*t = UserType(id)
	return err
}

func (s UserStatus) MarshalJSON() ([]byte, error) {
	return marshalCatalogName(userStatusNames[s], int(s))
}

func (s *UserStatus) UnmarshalJSON(data []byte) error {
	id, err := unmarshalCatalogName(data, userStatusNames)
	*s = UserStatus(id)
	return err
}

func marshalCatalogName(name string, id int) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("unknown catalog id %d", id)
	}
	return []byte(`"` + name + `"`), nil
}

func unmarshalCatalogName[T ~int](data []byte, names map[T]string) (T, error) {
	raw := string(data)
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return 0, fmt.Errorf("catalog name must be a string: %s", raw)
	}
	raw = raw[1 : len(raw)-1]
	for id, name := range names {
		if name == raw {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown catalog name %q", raw)
}

// CatalogSeeds is what the migrations are expected to have seeded, keyed by
// table name. VerifyCatalog compares one table's rows against it.
var CatalogSeeds = map[string]map[int]string{
	"estado_prestamo_catalogo": {
		int(LoanActive):   "ACTIVO",
		int(LoanReturned): "DEVUELTO",
		int(LoanOverdue):  "ATRASADO",
	},
	"estado_reserva_catalogo": {
		int(ReservationPending):   "PENDIENTE",
		int(ReservationFulfilled): "CUMPLIDA",
		int(ReservationCancelled): "CANCELADA",
		int(ReservationExpired):   "EXPIRADA",
	},
	"tipo_usuario_catalogo": {
		int(UserStudent):   "ESTUDIANTE",
		int(UserProfessor): "PROFESOR",
		int(UserAdmin):     "ADMINISTRADOR",
	},
	"estado_usuario_catalogo": {
		int(UserActive):  "ACTIVO",
		int(UserBlocked): "BLOQUEADO",
		int(UserDormant): "INACTIVO",
	},
}

// VerifyCatalog checks the rows loaded from a catalog table against the seed
// set for that table. Any missing, extra or renamed row is an error.
func VerifyCatalog(table string, rows []CatalogRow) error {
	want, ok := CatalogSeeds[table]
	if !ok {
		return fmt.Errorf("unknown catalog table %q", table)
	}
	if len(rows) != len(want) {
		return fmt.Errorf("catalog %s: have %d rows, want %d", table, len(rows), len(want))
	}
	for _, row := range rows {
		name, ok := want[row.ID]
		if !ok {
			return fmt.Errorf("catalog %s: unexpected id %d (%s)", table, row.ID, row.Name)
		}
		if name != row.Name {
			return fmt.Errorf("catalog %s: id %d is %q, want %q", table, row.ID, row.Name, name)
		}
	}
	return nil
}
