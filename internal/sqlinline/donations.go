package sqlinline

const QSelectDonationByCheckoutID = `--sql 9277afbe-3602-4c8c-9301-1cbaba54606e
select id, submission_id, challenge_id, creator_user_id, donor_user_id, amount_cents,
       currency, status, payout_state, creator_share_cents, platform_share_cents,
       platform_vat_cents, provider_receipt, result_code, journal_entry_id, version
from donations
where checkout_request_id = $1::text
for update;
`

const QUpdateDonationSettlement = `--sql 93a6ef72-a613-4dc5-aac8-b49d125dd732
update donations set
    status = $2::text,
    amount_cents = $3::bigint,
    creator_share_cents = $4::bigint,
    platform_share_cents = $5::bigint,
    platform_vat_cents = $6::bigint,
    provider_receipt = coalesce($7::text, provider_receipt),
    payer_phone = coalesce($8::text, payer_phone),
    result_code = $9::int,
    journal_entry_id = coalesce($10::uuid, journal_entry_id),
    status_history = status_history || $11::jsonb,
    version = version + 1,
    updated_at = now()
where id = $1::uuid;
`

const QSelectEligibleCreators = `--sql 02423896-ee8c-474c-bed0-ce88e5d8565e
select creator_user_id, min(donated_at) as earliest
from donations
where status = 'succeeded'
  and payout_state in ('unassigned', 'failed')
  and donated_at < $1::timestamptz
group by creator_user_id
order by earliest asc
limit $2::int;
`

const QSelectEligibleDonationsForUpdate = `--sql df08d5e5-ce4f-4ace-ab78-be8297863705
select id, creator_share_cents
from donations
where creator_user_id = $1::uuid
  and status = 'succeeded'
  and payout_state in ('unassigned', 'failed')
  and donated_at < $2::timestamptz
order by donated_at asc
for update;
`

const QMarkDonationsScheduled = `--sql 30af6c1d-0dfd-4309-8eb0-ca561d51d2a5
update donations set
    payout_state = 'scheduled',
    payout_batch_id = $2::uuid,
    payout_item_id = $3::uuid,
    updated_at = now()
where id = any($1::uuid[]);
`

const QSetDonationsPayoutStateByItem = `--sql 1db305f9-da05-4cf1-add9-b81578988285
update donations set
    payout_state = $2::text,
    updated_at = now()
where payout_item_id = $1::uuid;
`

const QMarkDonationsPaidByItem = `--sql 832149b2-a072-4f99-8c92-56efe076625a
update donations set
    payout_state = 'paid',
    paid_at = $2::timestamptz,
    updated_at = now()
where payout_item_id = $1::uuid;
`

const QRevertDonationsPayoutFailedByItem = `--sql 7066b71b-1c11-4f85-bf89-4dd68cb31b14
update donations set
    payout_state = 'failed',
    payout_batch_id = null,
    payout_item_id = null,
    updated_at = now()
where payout_item_id = $1::uuid;
`
