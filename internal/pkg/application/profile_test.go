package application

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/services"
)

func TestThatProfileUpdatesReachTheSession(t *testing.T) {
	w := newWorldForTest(t)
	form := NewProfileForm(services.NewUserService(w.client, w.client), w.session, w.log)

	form.Edit(func(p *domain.UserPatch) {
		name := "Farmer Joe"
		phone := "9876543210"
		p.FullName = &name
		p.Phone = &phone
	})

	preview, _ := form.Preview()
	if preview.FullName != "Farmer Joe" {
		t.Errorf("preview should show the pending change, got %q", preview.FullName)
	}

	user, err := form.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit failed: %s", err.Error())
	}

	current, _ := w.session.CurrentUser()
	if user.FullName != "Farmer Joe" || current.Phone != "9876543210" {
		t.Errorf("session was not updated: %+v", current)
	}
	if form.State() != Idle {
		t.Errorf("expected idle, got %s", form.State())
	}
}

func TestThatInvalidProfilePatchIsNotSent(t *testing.T) {
	w := newWorldForTest(t)
	form := NewProfileForm(services.NewUserService(w.client, w.client), w.session, w.log)
	before := w.backend.TotalRequests()

	form.Edit(func(p *domain.UserPatch) {
		phone := "12ab"
		p.Phone = &phone
	})

	if _, err := form.Submit(context.Background()); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, ok := form.Errors()["phone"]; !ok {
		t.Errorf("expected an error on phone, got %v", form.Errors())
	}
	if w.backend.TotalRequests() != before {
		t.Error("no request should be sent for an invalid patch")
	}
}

func TestThatProfileImageIsUploadedAndStored(t *testing.T) {
	w := newWorldForTest(t)
	form := NewProfileForm(services.NewUserService(w.client, w.client), w.session, w.log)
	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")

	reference, err := form.UploadImage(context.Background(), "me.gif", gif)
	if err != nil {
		t.Fatalf("upload failed: %s", err.Error())
	}

	current, _ := w.session.CurrentUser()
	if current.ProfileImage != reference || reference == "" {
		t.Errorf("expected the session to carry %q, got %q", reference, current.ProfileImage)
	}
	if string(w.backend.ProfileImage(w.user.ID)) != string(gif) {
		t.Error("the backend did not receive the image")
	}
}

func TestThatNonImagesAreRejectedBeforeUpload(t *testing.T) {
	w := newWorldForTest(t)
	form := NewProfileForm(services.NewUserService(w.client, w.client), w.session, w.log)

	_, err := form.UploadImage(context.Background(), "notes.txt", []byte("just some text"))

	if !errors.Is(err, services.ErrUnsupportedImage) {
		t.Errorf("expected ErrUnsupportedImage, got %v", err)
	}
	if w.backend.RequestsFor(http.MethodPost, "/api/User/") != 1 {
		t.Error("only the login request should have been posted")
	}
	if form.Message() != MessageUnsupportedImage || form.State() != Editing {
		t.Errorf("unexpected form state %s / %q", form.State(), form.Message())
	}
}
