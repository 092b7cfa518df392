package sqlinline

const QInsertJournalEntry = `--sql 3b2488e8-763f-436d-bbc2-708f143170c0
insert into journal_entries (event_type, event_ref_id, currency, posted_at)
values ($1::text, $2::uuid, $3::text, $4::timestamptz)
on conflict (event_type, event_ref_id) do nothing
returning id;
`

const QSelectJournalEntryIDByEvent = `--sql 67a712d4-a783-48bd-9cc8-ff74124f8694
select id
from journal_entries
where event_type = $1::text and event_ref_id = $2::uuid;
`

const QInsertJournalLine = `--sql 074ffee0-035d-4a5b-b539-4042190fbbe9
insert into journal_lines (journal_entry_id, account, debit_cents, credit_cents)
values ($1::uuid, $2::text, $3::bigint, $4::bigint);
`

const QInsertWalletLedgerEntry = `--sql 2cc1b68e-7f5a-401e-ba51-dcc38bdaa5f8
insert into wallet_ledger_entries (creator_user_id, journal_entry_id, delta_available_cents, delta_pending_cents, reason)
values ($1::uuid, $2::uuid, $3::bigint, $4::bigint, $5::text);
`

const QInsertCompanyLedgerEntry = `--sql bfd3d869-cf90-4ae9-bce8-e1fd27ba5c34
insert into company_ledger_entries (journal_entry_id, revenue_cents, vat_cents, expense_cents, cash_delta_cents)
values ($1::uuid, $2::bigint, $3::bigint, $4::bigint, $5::bigint);
`
