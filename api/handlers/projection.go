package handlers

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/benovo-app/benovo-api/databases"
	"github.com/benovo-app/benovo-api/models"
)

var (
	errMissingFields = errors.New("missing required fields")
	errAlreadyMember = errors.New("user is already a member")
	errNotPending    = errors.New("invitation is not pending")
	errNotInvitee    = errors.New("authenticated email does not match the invitation")
	errNotMember     = errors.New("user is not a member of this campaign")
	errAdminTarget   = errors.New("admins cannot be removed")
)

// isDuplicateKey reports whether a write ran into a uniqueness index.
// Those indexes are the authority for every conflict invariant, so this is
// how concurrent races surface.
func isDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// userSummaryMap loads the users behind a set of ids in one query.
// Attaching user records to memberships, invitations and contributions is a
// read-side projection over the stores, not core logic.
func userSummaryMap(ctx context.Context, udb databases.UserDatabase, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	out := make(map[primitive.ObjectID]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := udb.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.Summary()
	}
	return out, nil
}
