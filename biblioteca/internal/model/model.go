package model

import (
	"time"
)

type Author struct {
	ID          int        `json:"id" db:"id_autor"`
	Name        string     `json:"name" db:"nombre"`
	Nationality string     `json:"nationality,omitempty" db:"nacionalidad"`
	BirthDate   *time.Time `json:"birthDate,omitempty" db:"fec_nacimiento"`
}

type Category struct {
	ID   int    `json:"id" db:"id_categoria"`
	Name string `json:"name" db:"nombre"`
}

type Book struct {
	ID             int        `json:"id" db:"id_libro"`
	ISBN           string     `json:"isbn" db:"isbn"`
	Title          string     `json:"title" db:"titulo"`
	AuthorID       int        `json:"authorId" db:"id_autor"`
	CategoryID     int        `json:"categoryId" db:"id_categoria"`
	Publisher      string     `json:"publisher,omitempty" db:"editorial"`
	PublishedAt    *time.Time `json:"publishedAt,omitempty" db:"ano_publicacion"`
	Description    string     `json:"description,omitempty" db:"descripcion"`
	CoverURL       string     `json:"coverUrl,omitempty" db:"portada_url"`
	TotalCopies    int        `json:"totalCopies" db:"cantidad_total"`
	AvailableCount int        `json:"availableCount" db:"cantidad_disponible"`
}

type User struct {
	ID                int        `json:"id" db:"id_usuario"`
	Username          string     `json:"username" db:"username"`
	Name              string     `json:"name" db:"nombre"`
	Password          string     `json:"-" db:"contrasena"`
	Email             string     `json:"email" db:"email"`
	Type              UserType   `json:"type" db:"id_tipo_usuario"`
	Status            UserStatus `json:"status" db:"id_estado_usuario"`
	RegisteredAt      time.Time  `json:"registeredAt" db:"fecha_registro"`
	FailedAttempts    int        `json:"failedAttempts" db:"intentos_fallidos"`
	PasswordChangeDue bool       `json:"passwordChangeDue" db:"requiere_cambio_pass"`
}

type Loan struct {
	ID         int        `json:"-" db:"id_prestamo"`
	LoanUid    string     `json:"loanUid" db:"prestamo_uid"`
	UserID     int        `json:"userId" db:"id_usuario"`
	BookID     int        `json:"bookId" db:"id_libro"`
	IssuedAt   time.Time  `json:"issuedAt" db:"fecha_prestamo"`
	DueAt      time.Time  `json:"dueAt" db:"fecha_devolucion_esperada"`
	ReturnedAt *time.Time `json:"returnedAt,omitempty" db:"fecha_devolucion_real"`
	Status     LoanStatus `json:"status" db:"id_estado_prestamo"`
}

type Reservation struct {
	ID             int               `json:"-" db:"id_reserva"`
	ReservationUid string            `json:"reservationUid" db:"reserva_uid"`
	UserID         int               `json:"userId" db:"id_usuario"`
	BookID         int               `json:"bookId" db:"id_libro"`
	ReservedAt     time.Time         `json:"reservedAt" db:"fecha_reserva"`
	Status         ReservationStatus `json:"status" db:"id_estado_reserva"`
}

type SecurityQuestion struct {
	ID   int    `json:"id" db:"id_pregunta"`
	Text string `json:"text" db:"texto_pregunta"`
}

type SecurityAnswer struct {
	ID         int    `json:"-" db:"id_respuesta"`
	UserID     int    `json:"userId" db:"id_usuario"`
	QuestionID int    `json:"questionId" db:"id_pregunta"`
	Answer     string `json:"-" db:"respuesta"`
}

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type ListBooks struct {
	Paging
	Items []Book `json:"items"`
}

type ListUsers struct {
	Paging
	Items []User `json:"items"`
}

type CreateBookRequest struct {
	ISBN        string     `json:"isbn" validate:"required,len=13"`
	Title       string     `json:"title" validate:"required,max=60"`
	AuthorID    int        `json:"authorId" validate:"required"`
	CategoryID  int        `json:"categoryId" validate:"required"`
	Publisher   string     `json:"publisher" validate:"max=60"`
	PublishedAt *time.Time `json:"publishedAt"`
	Description string     `json:"description"`
	CoverURL    string     `json:"coverUrl" validate:"max=512"`
	TotalCopies int        `json:"totalCopies" validate:"gte=0"`
}

type UpdateBookRequest struct {
	Title       *string    `json:"title" validate:"omitempty,max=60"`
	Publisher   *string    `json:"publisher" validate:"omitempty,max=60"`
	PublishedAt *time.Time `json:"publishedAt"`
	Description *string    `json:"description"`
	CoverURL    *string    `json:"coverUrl" validate:"omitempty,max=512"`
}

// BookCriteria is the dynamic search filter over the catalog. Zero values
// mean "no constraint".
type BookCriteria struct {
	Title         string `query:"title"`
	ISBN          string `query:"isbn"`
	AuthorID      int    `query:"authorId"`
	CategoryID    int    `query:"categoryId"`
	AvailableOnly bool   `query:"availableOnly"`
}

type CreateAuthorRequest struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Nationality string     `json:"nationality" validate:"max=50"`
	BirthDate   *time.Time `json:"birthDate"`
}

type CreateUserRequest struct {
	Username string   `json:"username" validate:"required,max=50"`
	Name     string   `json:"name" validate:"required,max=60"`
	Password string   `json:"password" validate:"required,max=60"`
	Email    string   `json:"email" validate:"required,email,max=60"`
	Type     UserType `json:"type" validate:"required"`
}

type CreateLoanRequest struct {
	UserID int       `json:"userId" validate:"required"`
	BookID int       `json:"bookId" validate:"required"`
	DueAt  time.Time `json:"dueAt" validate:"required"`
}

type CreateReservationRequest struct {
	UserID int `json:"userId" validate:"required"`
	BookID int `json:"bookId" validate:"required"`
}

// Promotion is the outcome of converting the oldest pending reservation on a
// book into a loan after a copy was freed.
type Promotion struct {
	Reservation Reservation `json:"reservation"`
	Loan        Loan        `json:"loan"`
}

// Drift is one book whose cached availability diverged from the count derived
// from outstanding loans.
type Drift struct {
	BookID   int `db:"id_libro"`
	Stored   int `db:"cantidad_disponible"`
	Computed int `db:"computed"`
}
