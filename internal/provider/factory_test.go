package provider

import (
	"context"
	"testing"
)

func TestNewRejectsCLIProviders(t *testing.T) {
	if _, err := New(context.Background(), ProviderClaudeCLI, ""); err == nil {
		t.Error("CLI providers have no API client")
	}
}

func TestNewRejectsUnregistered(t *testing.T) {
	if _, err := New(context.Background(), Provider("nobody"), ""); err == nil {
		t.Error("unregistered providers must error")
	}
}

func TestRegisteredFactoryIsUsed(t *testing.T) {
	fake := &Fake{ProviderName: "stub"}
	Register(Provider("stub"), func(context.Context, string) (LLMProvider, error) {
		return fake, nil
	})

	client, err := New(context.Background(), Provider("stub"), "key")
	if err != nil {
		t.Fatal(err)
	}
	if client.Name() != "stub" {
		t.Errorf("wrong client resolved: %s", client.Name())
	}
}
