// Package apperr porte la taxonomie d'erreurs du domaine: validation
// (corrigeable par l'utilisateur, nomme le champ manquant), permission,
// conflit de garde (le client doit recharger, pas réessayer) et introuvable
// (le client abandonne le patch en attente). Les services renvoient ces
// erreurs, les handlers les traduisent en HTTP via ToFiber.
package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type Kind int

const (
	KindValidation Kind = iota
	KindPermission
	KindConflict
	KindNotFound
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func Validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }
func Permission(msg string) error { return &Error{Kind: KindPermission, Message: msg} }
func Conflict(msg string) error   { return &Error{Kind: KindConflict, Message: msg} }
func NotFound(msg string) error   { return &Error{Kind: KindNotFound, Message: msg} }

func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// ToFiber traduit une erreur de service en erreur HTTP. Une erreur inconnue
// remonte telle quelle au gestionnaire global (500).
func ToFiber(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	switch e.Kind {
	case KindValidation:
		return fiber.NewError(fiber.StatusBadRequest, e.Message)
	case KindPermission:
		return fiber.NewError(fiber.StatusForbidden, e.Message)
	case KindConflict:
		return fiber.NewError(fiber.StatusConflict, e.Message)
	case KindNotFound:
		return fiber.NewError(fiber.StatusNotFound, e.Message)
	default:
		return err
	}
}
