package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create flow_definitions table
			CREATE TABLE flow_definitions (
				id UUID PRIMARY KEY,
				integration VARCHAR(255) NOT NULL,
				version INTEGER NOT NULL,
				flow_type VARCHAR(50) NOT NULL CHECK (flow_type IN ('wizard', 'oauth', 'discovery', 'hybrid')),
				steps JSONB NOT NULL DEFAULT '[]',
				oauth_provider JSONB,
				discovery_protocols JSONB,
				is_active BOOLEAN NOT NULL DEFAULT false,
				is_default BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (integration, version)
			);

			CREATE INDEX idx_flow_definitions_integration ON flow_definitions(integration);
			CREATE INDEX idx_flow_definitions_created_at ON flow_definitions(created_at);

			-- At most one active version per integration
			CREATE UNIQUE INDEX idx_flow_definitions_one_active
				ON flow_definitions(integration) WHERE is_active;

			-- Create oauth_tokens table
			CREATE TABLE oauth_tokens (
				config_entry_id VARCHAR(255) PRIMARY KEY,
				provider VARCHAR(255) NOT NULL,
				access_token TEXT NOT NULL,
				refresh_token TEXT,
				expires_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_oauth_tokens_provider ON oauth_tokens(provider);
		`,
	}
}
