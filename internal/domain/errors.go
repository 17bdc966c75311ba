package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrConflict           = errors.New("conflicto con el estado actual")
)

// Taxonomía de errores del flujo de comprobantes electrónicos. Cada error
// del pipeline (generación, firma, envío, consulta) envuelve uno de estos
// centinelas para que las capas superiores decidan si es reintentable.
var (
	// ErrConfiguration: URLs, credenciales o certificado ausentes o mal
	// formados. Nunca se reintenta; lo corrige un operador.
	ErrConfiguration = errors.New("error de configuración")

	// ErrValidation: el documento no cumple los requisitos antes de toda
	// llamada de red (sin líneas, referencia obligatoria ausente, etc).
	ErrValidation = errors.New("error de validación del comprobante")

	// ErrIntegrity: el digest del XML firmado no coincide con el almacenado.
	// Bloquea el envío; requiere volver a firmar explícitamente.
	ErrIntegrity = errors.New("el XML firmado fue alterado")

	// ErrNetwork: timeout o fallo de conexión. El reintento lo programa el
	// cron de consulta, no el llamador.
	ErrNetwork = errors.New("error de red contra Hacienda")

	// ErrRemoteRejection: HTTP >= 400 o veredicto "rechazado" de Hacienda.
	ErrRemoteRejection = errors.New("comprobante rechazado por Hacienda")
)
