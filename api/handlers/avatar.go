package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/benovo-app/benovo-api/api"
	"github.com/benovo-app/benovo-api/config"
	"github.com/benovo-app/benovo-api/databases"
)

// uploads above this size are rejected before hitting cloudinary
const maxAvatarBytes = 5 << 20

// Avatar struct mostly used for mocking tests
type Avatar struct {
	DB databases.UserDatabase
}

// UploadAvatarHandler accepts a multipart avatar upload, stores it in
// cloudinary and records the hosted URL on the user
func (a Avatar) UploadAvatarHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(api.UserID(r.Context()))
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		config.ErrorStatus("failed to parse multipart form", http.StatusBadRequest, w, err)
		return
	}
	file, _, err := r.FormFile("avatar")
	if err != nil {
		config.ErrorStatus("avatar file is required", http.StatusBadRequest, w, err)
		return
	}
	defer file.Close()

	cld, err := cloudinary.NewFromURL(os.Getenv("CLOUDINARY_URL"))
	if err != nil {
		config.ErrorStatus("failed to initialize image storage", http.StatusInternalServerError, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	overwrite := true
	resp, err := cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:    "avatars",
		PublicID:  userID.Hex(),
		Overwrite: &overwrite,
	})
	if err != nil {
		config.ErrorStatus("failed to upload avatar", http.StatusInternalServerError, w, err)
		return
	}

	err = a.DB.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"avatar_url": resp.SecureURL, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		config.ErrorStatus("failed to save avatar url", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Debugf("avatar updated for user %s", userID.Hex())

	b, err := json.Marshal(map[string]string{"avatar_url": resp.SecureURL})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
