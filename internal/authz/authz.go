// Package authz holds the single ownership rule applied before every mutation.
package authz

import "forum/internal/models"

// Action is what the actor wants to do with a resource.
type Action string

const (
	ActionView   Action = "view"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Resource is anything with an owner. Users own themselves.
type Resource interface {
	OwnerID() uint
	// AdminOverride reports whether superusers may act on the resource regardless of ownership.
	AdminOverride() bool
}

// UserResource wraps a target user id.
type UserResource uint

func (u UserResource) OwnerID() uint       { return uint(u) }
func (u UserResource) AdminOverride() bool { return true }

// DiscussionResource wraps a discussion.
type DiscussionResource struct{ D *models.Discussion }

func (r DiscussionResource) OwnerID() uint       { return r.D.UserID }
func (r DiscussionResource) AdminOverride() bool { return false }

// CommentResource wraps a comment.
type CommentResource struct{ C *models.Comment }

func (r CommentResource) OwnerID() uint       { return r.C.UserID }
func (r CommentResource) AdminOverride() bool { return false }

// CanAct reports whether actor may perform action on resource.
// Owners always may; superusers may only where the resource allows an override.
func CanAct(actor *models.User, resource Resource, _ Action) bool {
	if actor == nil || resource == nil {
		return false
	}
	if actor.ID != 0 && actor.ID == resource.OwnerID() {
		return true
	}
	return resource.AdminOverride() && actor.IsAdmin()
}
