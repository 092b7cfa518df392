package sqlinline

const QInsertWebhookEvent = `--sql fe3ba351-452f-4abc-b832-f0b4ad6a1c23
insert into webhook_events (kind, raw_body, signature, timestamp_header, verification_outcome, failure_reason, skew_seconds)
values ($1::text, $2::bytea, $3::text, $4::text, $5::text, $6::text, $7::int)
returning id;
`

const QSelectWebhookEventBody = `--sql 4e9e9d71-d7a6-406c-babb-1b6646e33e17
select kind, raw_body
from webhook_events
where id = $1::uuid;
`

const QInsertAuditLog = `--sql 361f6e42-a14e-4b8f-a52a-786c4b521c18
insert into audit_logs (actor, action, resource, outcome, metadata)
values ($1::text, $2::text, $3::text, $4::text, coalesce($5::jsonb, '{}'::jsonb));
`

const QSelectCreatorProfile = `--sql c2b8b158-8691-4115-94d7-cae60a5c9de4
select id, currency, coalesce(phone, '')
from users
where id = $1::uuid;
`
