package usersync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowInsecureOnlyForTestDomains(t *testing.T) {
	tests := []struct {
		name  string
		skip  bool
		extra []string
		url   string
		want  bool
	}{
		{name: "flag off", skip: false, url: "https://crm.test", want: false},
		{name: "test suffix", skip: true, url: "https://crm.test/api", want: true},
		{name: "test suffix any case", skip: true, url: "https://CRM.Test", want: true},
		{name: "production host", skip: true, url: "https://crm.example.com", want: false},
		{name: "suffix inside host", skip: true, url: "https://crm.test.example.com", want: false},
		{name: "unparsable url", skip: true, url: "://crm.test", want: false},
		{name: "custom suffix", skip: true, extra: []string{".local"}, url: "https://shop.local", want: true},
		{name: "custom suffix replaces default", skip: true, extra: []string{".local"}, url: "https://crm.test", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDeliveryClient(nil,
				WithSkipTLSForTestDomains(tt.skip, tt.extra...),
				WithDeliveryLogger(NoopLogger()),
			)
			assert.Equal(t, tt.want, d.allowInsecure(tt.url))

			call := d.Client(TargetApp{Name: "app", URL: tt.url})
			if tt.want {
				assert.Same(t, d.insecure, call.client)
			} else {
				assert.Same(t, d.secure, call.client)
			}
		})
	}
}
