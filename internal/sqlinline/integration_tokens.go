package sqlinline

// Provider API keys. Blank tokens are treated as absent.

const QSelectIntegrationToken = `--sql 4c1f7b2e-9a3d-4e8f-b6a5-2d7c0e9f1a34
select token
from integration_tokens
where provider = $1::text
  and length(btrim(token)) > 0
order by updated_at desc
limit 1;
`

const QUpsertIntegrationToken = `--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`

const QDeleteIntegrationToken = `--sql b83e51d0-27c4-4f96-a0d8-5e6f7a8b9c0d
delete from integration_tokens
where provider = $1::text;
`
