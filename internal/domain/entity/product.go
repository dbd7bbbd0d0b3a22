package entity

// Product identidad de un producto del catálogo externo.
// El libro de stock lo trata como clave foránea opaca.
type Product struct {
	ID          int64
	Code        string
	Description string
}
